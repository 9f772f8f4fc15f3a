package web

// Webhook notification shape as delivered by the WhatsApp Cloud API. Every
// level can be absent; a payload with no message object is a valid no-op.
type deliveryPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// firstMessage digs out the first inbound text message, tolerating absent
// fields at every nesting level.
func (p *deliveryPayload) firstMessage() (senderID, text string, ok bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return "", "", false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return "", "", false
	}
	m := msgs[0]
	if m.Text == nil {
		return "", "", false
	}
	return m.From, m.Text.Body, true
}
