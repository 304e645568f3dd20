package core

// Predicate selects messages for a filtered view of a State.
type Predicate func(m Message) bool

// State is the conversation log of a single run together with the name of the
// node that produced the most recent message.
//
// State is a value type: every operation returns a new State and never mutates
// the receiver. Derived states never share a backing array with their source,
// so an older State stays valid after any number of appends or filters.
type State struct {
	messages []Message
	sender   string
}

// NewState seeds a State with a single user message carrying question.
func NewState(question string) State {
	return State{}.Append(NewUserMessage(question))
}

// Append returns a new State with msgs appended.
//
// A non-tool message with a name updates the sender. Tool results keep the
// current sender so that control can return to the node that requested them.
func (s State) Append(msgs ...Message) State {
	next := State{
		messages: make([]Message, 0, len(s.messages)+len(msgs)),
		sender:   s.sender,
	}
	next.messages = append(next.messages, s.messages...)

	for _, m := range msgs {
		next.messages = append(next.messages, m.clone())
		if m.Role != RoleTool && m.Name != "" {
			next.sender = m.Name
		}
	}

	return next
}

// Filtered returns a derived State holding only the messages accepted by keep.
// The sender is carried over unchanged.
func (s State) Filtered(keep Predicate) State {
	next := State{sender: s.sender, messages: make([]Message, 0, len(s.messages))}
	for _, m := range s.messages {
		if keep(m) {
			next.messages = append(next.messages, m)
		}
	}
	return next
}

// Merge concatenates the logs of a and b (a first). The sender of b wins
// unless it is empty. Merge is associative.
func Merge(a, b State) State {
	next := State{
		messages: make([]Message, 0, len(a.messages)+len(b.messages)),
		sender:   a.sender,
	}
	next.messages = append(next.messages, a.messages...)
	next.messages = append(next.messages, b.messages...)
	if b.sender != "" {
		next.sender = b.sender
	}
	return next
}

// Messages returns a copy of the conversation log.
func (s State) Messages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// Last returns the most recent message and false when the log is empty.
func (s State) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1].clone(), true
}

// Len returns the number of messages in the log.
func (s State) Len() int { return len(s.messages) }

// Sender returns the name of the node that produced the most recent
// non-tool message.
func (s State) Sender() string { return s.sender }

// AuthoredBy reports whether the log holds a final (tool-call free) message
// produced by name.
func (s State) AuthoredBy(name string) bool {
	for _, m := range s.messages {
		if m.Name == name && m.Role != RoleTool && !m.HasToolCalls() {
			return true
		}
	}
	return false
}
