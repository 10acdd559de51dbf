package machine

// Stack is the LIFO word stack used by push/pop and call/return.
type Stack []uint16

// Push puts a value on top of the stack.
func (s *Stack) Push(v uint16) {
	*s = append(*s, v)
}

// Pop removes and returns the top of the stack. It returns false if the
// stack is empty.
func (s *Stack) Pop() (uint16, bool) {
	n := len(*s)
	if n == 0 {
		return 0, false
	}
	v := (*s)[n-1]
	*s = (*s)[:n-1]
	return v, true
}

// Len returns the number of values on the stack.
func (s Stack) Len() int {
	return len(s)
}

// Values returns a copy of the stack content, bottom first.
func (s Stack) Values() []uint16 {
	return append([]uint16(nil), s...)
}
