package domain

import "time"

// Action is the outcome of a gate evaluation.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionChallenge Action = "challenge"
	ActionBlock     Action = "block"
)

// Decision is the result of evaluating a single request against the
// admission gate. Exactly one decision is produced per request.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`

	// Score is the bot score computed for the request, when scoring ran.
	Score int `json:"score,omitempty"`

	// RemainingTokens holds the client's token balance after the limiter
	// stage, when the limiter ran.
	RemainingTokens float64 `json:"remaining_tokens,omitempty"`

	// RetryAfter is non-zero only for rate-limit blocks; callers translate
	// it into a Retry-After header on a 429 response.
	RetryAfter time.Duration `json:"-"`

	// ReturnTo carries the original path and query for challenge decisions
	// so the challenge surface can forward the client back.
	ReturnTo string `json:"return_to,omitempty"`
}
