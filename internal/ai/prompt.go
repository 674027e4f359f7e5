package ai

// chatMessage is the message shape shared by the chat-completion style
// providers (openai, openrouter, ollama).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func contextBlock(text string) string {
	return "Context:\n" + text
}

func questionBlock(text string) string {
	return "Question:\n" + text
}

// buildChatMessages lays a request out as: instruction, context, the history
// turns oldest first, then the question.
func buildChatMessages(req *GenerateRequest) []chatMessage {
	msgs := make([]chatMessage, 0, 3+2*len(req.History))
	if req.Instruction != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.Instruction})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: contextBlock(req.Context)})
	for _, turn := range req.History {
		msgs = append(msgs,
			chatMessage{Role: "user", Content: turn.Question},
			chatMessage{Role: "assistant", Content: turn.Answer},
		)
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: questionBlock(req.Question)})
	return msgs
}
