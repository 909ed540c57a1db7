package room

// chatHistoryCap bounds how many messages a room remembers. The oldest
// message is evicted when a new one would exceed it.
const chatHistoryCap = 250

type chatRing struct {
	messages []ChatMessage
}

func newChatRing() *chatRing {
	return &chatRing{messages: make([]ChatMessage, 0, chatHistoryCap)}
}

func (c *chatRing) push(msg ChatMessage) {
	if len(c.messages) == chatHistoryCap {
		c.messages = append(c.messages[:0], c.messages[1:]...)
		c.messages[chatHistoryCap-1] = msg
		return
	}
	c.messages = append(c.messages, msg)
}

// history returns a copy safe to hand to an encoder.
func (c *chatRing) history() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *chatRing) len() int {
	return len(c.messages)
}
