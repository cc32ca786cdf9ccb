package engine

// User-facing answers for the expected failure paths. Exchanges never
// surface raw protocol errors; they end with one of these instead.
const (
	// MsgNotAvailable is returned by the function-calling loop when the
	// session has no tools or no model is configured.
	MsgNotAvailable = "The assistant is not available right now."

	// MsgFallbackApology is returned when the loop ends without an answer.
	MsgFallbackApology = "I'm sorry, I couldn't find an answer to your question."

	// MsgNoResponseContent is returned by the delegated path when the
	// assistant's output is empty or judged unsafe.
	MsgNoResponseContent = "No response content."

	// MsgNoSuitableTool is returned by the heuristic matcher when no tool
	// scores above zero.
	MsgNoSuitableTool = "I couldn't find a suitable tool to answer your question."

	// MsgNoResponseFromTool is returned by the heuristic matcher when the
	// chosen tool produced empty text.
	MsgNoResponseFromTool = "No response from tool."
)

// MaxIterations bounds the completion rounds of one function-calling
// exchange.
const MaxIterations = 5
