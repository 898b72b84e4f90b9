package hxsignup

// SwapMode is an hx-swap value.
type SwapMode string

const (
	// SwapOuter replaces the target element itself. The form swaps this
	// way so its wrapper attributes are re-rendered with the new state.
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces only the target's contents.
	SwapInner SwapMode = "innerHTML"

	// SwapNone discards the response body; headers still apply.
	SwapNone SwapMode = "none"
)

// String returns the attribute value.
func (s SwapMode) String() string {
	return string(s)
}
