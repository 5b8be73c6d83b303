package model

// Envelope is the JSON body every relay endpoint returns.
type Envelope struct {
	OK   bool   `json:"ok"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(msg string, data any) Envelope {
	return Envelope{
		OK:   true,
		Msg:  msg,
		Data: data,
	}
}

// Error returns a failed envelope carrying only a message.
func Error(msg string) Envelope {
	return Envelope{
		Msg: msg,
	}
}
