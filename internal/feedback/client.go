package feedback

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// FeedbackClient calls posture.FeedbackService.
type FeedbackClient struct {
	cc grpc.ClientConnInterface
}

// NewFeedbackClient returns a client on cc.
func NewFeedbackClient(cc grpc.ClientConnInterface) *FeedbackClient {
	return &FeedbackClient{cc: cc}
}

// FeedbackStream is the client side of StreamFeedback.
type FeedbackStream interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type feedbackStreamClient struct {
	grpc.ClientStream
}

func (x *feedbackStreamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// StreamFeedback opens the event stream. types, when non-empty, limits the
// event types the server sends.
func (c *FeedbackClient) StreamFeedback(ctx context.Context, types []string, opts ...grpc.CallOption) (FeedbackStream, error) {
	req, err := streamRequest(types)
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &FeedbackServiceDesc.Streams[0], StreamFeedbackMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &feedbackStreamClient{stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func streamRequest(types []string) (*structpb.Struct, error) {
	if len(types) == 0 {
		return &structpb.Struct{}, nil
	}
	list := make([]interface{}, len(types))
	for i, t := range types {
		list[i] = t
	}
	req, err := structpb.NewStruct(map[string]interface{}{"types": list})
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	return req, nil
}
