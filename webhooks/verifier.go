package webhooks

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
)

const hottokHeader = "X-Hotmart-Hottok"

// HottokVerifier checks the shared secret the provider echoes back on every
// delivery. An empty configured token disables the check.
type HottokVerifier struct {
	Token string
}

func NewHottokVerifier(token string) *HottokVerifier {
	return &HottokVerifier{Token: strings.TrimSpace(token)}
}

func (v *HottokVerifier) Verify(_ context.Context, req InboundRequest) error {
	if v == nil || v.Token == "" {
		return nil
	}
	presented := headerValue(req.Headers, hottokHeader)
	if presented == "" && req.Metadata != nil {
		presented = strings.TrimSpace(fmt.Sprint(req.Metadata["hottok"]))
		if presented == "<nil>" {
			presented = ""
		}
	}
	if presented == "" {
		return fmt.Errorf("webhooks: delivery is missing the hottok token")
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(v.Token)) != 1 {
		return fmt.Errorf("webhooks: delivery hottok token does not match")
	}
	return nil
}

var _ Verifier = (*HottokVerifier)(nil)
