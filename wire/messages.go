package wire

import "chordring/ring"

// KV is a single key/value pair as carried by TransferKeysResponse.
type KV struct {
	Key   string
	Value string
}

type FindSuccessorRequest struct {
	ID ring.ID
}

func (m *FindSuccessorRequest) Tag() Tag { return TagFindSuccessorRequest }
func (m *FindSuccessorRequest) encodeBody(e *encoder) {
	e.writeU32(m.ID)
}

type FindSuccessorResponse struct {
	Found     bool
	Successor ring.NodeInfo
}

func (m *FindSuccessorResponse) Tag() Tag { return TagFindSuccessorResponse }
func (m *FindSuccessorResponse) encodeBody(e *encoder) {
	e.writeBool(m.Found)
	if m.Found {
		e.writeNodeInfo(m.Successor)
	}
}

type GetPredecessorRequest struct{}

func (m *GetPredecessorRequest) Tag() Tag            { return TagGetPredecessorRequest }
func (m *GetPredecessorRequest) encodeBody(*encoder) {}

type GetPredecessorResponse struct {
	Has         bool
	Predecessor ring.NodeInfo
}

func (m *GetPredecessorResponse) Tag() Tag { return TagGetPredecessorResponse }
func (m *GetPredecessorResponse) encodeBody(e *encoder) {
	e.writeBool(m.Has)
	if m.Has {
		e.writeNodeInfo(m.Predecessor)
	}
}

type Notify struct {
	Node ring.NodeInfo
}

func (m *Notify) Tag() Tag { return TagNotify }
func (m *Notify) encodeBody(e *encoder) {
	e.writeNodeInfo(m.Node)
}

type NotifyAck struct {
	Accepted bool
}

func (m *NotifyAck) Tag() Tag { return TagNotifyAck }
func (m *NotifyAck) encodeBody(e *encoder) {
	e.writeBool(m.Accepted)
}

type Ping struct{}

func (m *Ping) Tag() Tag            { return TagPing }
func (m *Ping) encodeBody(*encoder) {}

type Pong struct{}

func (m *Pong) Tag() Tag            { return TagPong }
func (m *Pong) encodeBody(*encoder) {}

type GetRequest struct {
	Key string
}

func (m *GetRequest) Tag() Tag { return TagGetRequest }
func (m *GetRequest) encodeBody(e *encoder) {
	e.writeString(m.Key)
}

type GetResponse struct {
	Found bool
	Value string
}

func (m *GetResponse) Tag() Tag { return TagGetResponse }
func (m *GetResponse) encodeBody(e *encoder) {
	e.writeBool(m.Found)
	if m.Found {
		e.writeString(m.Value)
	}
}

type PutRequest struct {
	Key   string
	Value string
}

func (m *PutRequest) Tag() Tag { return TagPutRequest }
func (m *PutRequest) encodeBody(e *encoder) {
	e.writeString(m.Key)
	e.writeString(m.Value)
}

type PutResponse struct {
	Success bool
}

func (m *PutResponse) Tag() Tag { return TagPutResponse }
func (m *PutResponse) encodeBody(e *encoder) {
	e.writeBool(m.Success)
}

// TransferKeysRequest asks the receiver for every key it holds whose hash
// falls in (Start, End] — used when a newly joined node pulls the range it
// now owns from its successor. Remove tells the receiver to relinquish the range it
// reports rather than merely echo it, so a join-time pull doesn't leave the
// donor holding keys it no longer owns.
type TransferKeysRequest struct {
	Start  ring.ID
	End    ring.ID
	Remove bool
}

func (m *TransferKeysRequest) Tag() Tag { return TagTransferKeysRequest }
func (m *TransferKeysRequest) encodeBody(e *encoder) {
	e.writeU32(m.Start)
	e.writeU32(m.End)
	e.writeBool(m.Remove)
}

type TransferKeysResponse struct {
	Items []KV
}

func (m *TransferKeysResponse) Tag() Tag { return TagTransferKeysResponse }
func (m *TransferKeysResponse) encodeBody(e *encoder) {
	e.writeU32(uint32(len(m.Items)))
	for _, kv := range m.Items {
		e.writeString(kv.Key)
		e.writeString(kv.Value)
	}
}

type ErrorResponse struct {
	Message string
}

func (m *ErrorResponse) Tag() Tag { return TagErrorResponse }
func (m *ErrorResponse) encodeBody(e *encoder) {
	e.writeString(m.Message)
}
