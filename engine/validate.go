package engine

// ValidateResponse is spec.md §6's "validate" operation result:
// Success | Failure(message).
type ValidateResponse struct {
	Valid   bool
	Message string
}

// Validate compiles wasmCode and confirms it exposes the "call"
// entrypoint this engine's ABI requires, without running any of it —
// the CLI harness and the RPC boundary both use this to reject
// malformed session/payment bytecode before ever attempting execute.
func (s *State) Validate(wasmCode []byte) ValidateResponse {
	if err := s.executor.Validate(wasmCode); err != nil {
		observe("validate", "failure")
		return ValidateResponse{Valid: false, Message: err.Error()}
	}
	observe("validate", "success")
	return ValidateResponse{Valid: true}
}
