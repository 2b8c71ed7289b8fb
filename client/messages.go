package client

// PromptMessage is one event in a QueueItem's message stream. Type selects
// which of the To* accessors applies.
type PromptMessage struct {
	Type    string
	Message interface{}
}

// our cast of characters:
// started
// executing
// progress
// data
// stopped

type PromptMessageStarted struct {
	PromptID string `json:"prompt_id"`
}

func (p *PromptMessage) ToPromptMessageStarted() *PromptMessageStarted {
	return p.Message.(*PromptMessageStarted)
}

// PromptMessageExecuting reports the node the backend moved on to. NodeName
// is the graph key the prompt was built with; ClassType is empty when the
// name was not found in the submitted graph.
type PromptMessageExecuting struct {
	NodeName  string
	ClassType string
}

func (p *PromptMessage) ToPromptMessageExecuting() *PromptMessageExecuting {
	return p.Message.(*PromptMessageExecuting)
}

type PromptMessageProgress struct {
	Max   int
	Value int
}

func (p *PromptMessage) ToPromptMessageProgress() *PromptMessageProgress {
	return p.Message.(*PromptMessageProgress)
}

type PromptMessageData struct {
	NodeName string
	Data     map[string][]DataOutput
}

func (p *PromptMessage) ToPromptMessageData() *PromptMessageData {
	return p.Message.(*PromptMessageData)
}

type PromptMessageStopped struct {
	QueueItem *QueueItem
	Exception *PromptMessageStoppedException
}

type PromptMessageStoppedException struct {
	NodeName         string
	NodeType         string
	ExceptionMessage string
	ExceptionType    string
	Traceback        []string
}

func (p *PromptMessage) ToPromptMessageStopped() *PromptMessageStopped {
	return p.Message.(*PromptMessageStopped)
}
