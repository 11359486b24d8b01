package service

// Prompt produces the text sent to a provider for a structured request.
// It is either a literal string (Text) or a function of the validated input
// (PromptFunc).
type Prompt interface {
	Render(input any) (string, error)
}

// Text is a literal prompt that ignores the input.
type Text string

// Render returns the literal text.
func (t Text) Render(any) (string, error) {
	return string(t), nil
}

// PromptFunc renders a prompt from the validated input.
type PromptFunc func(input any) (string, error)

// Render invokes the function.
func (f PromptFunc) Render(input any) (string, error) {
	return f(input)
}
