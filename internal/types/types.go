package types

// Principal is the authenticated caller. The analytics layer trusts it as
// given.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
