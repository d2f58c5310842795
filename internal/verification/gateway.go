package verification

import (
	"context"
	"log"
)

// GatewayCredentials are the SMS provider settings. The log gateway only
// reports whether they are present.
type GatewayCredentials struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c GatewayCredentials) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// LogGateway writes messages to the process log instead of sending them.
type LogGateway struct {
	creds GatewayCredentials
}

func NewLogGateway(creds GatewayCredentials) *LogGateway {
	if creds.Configured() {
		log.Printf("[sms][mock] gateway credentials present (from=%s), messages are still logged only", creds.FromNumber)
	} else {
		log.Printf("[sms][mock] gateway credentials missing, messages are logged only")
	}
	return &LogGateway{creds: creds}
}

func (g *LogGateway) Send(ctx context.Context, destination, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("[sms][mock] to=%s: %s", destination, payload)
	return nil
}
