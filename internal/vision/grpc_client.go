package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/eleven-am/roverlink/internal/frames"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	perceptionService   = "perception.v1.Perception"
	recognizeTextMethod = "/" + perceptionService + "/RecognizeText"
	detectObjectsMethod = "/" + perceptionService + "/DetectObjects"
	defaultMaxMsgSize   = 16 * 1024 * 1024
)

// GRPCClient calls a perception service over gRPC using generic Struct
// messages, so no generated stubs are required.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

func NewGRPCClient(cfg Config) (*GRPCClient, error) {
	conn, err := grpc.NewClient(cfg.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(defaultMaxMsgSize),
			grpc.MaxCallSendMsgSize(defaultMaxMsgSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial perception: %w", err)
	}
	return &GRPCClient{conn: conn, token: cfg.Token}, nil
}

func (c *GRPCClient) withAuth(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func (c *GRPCClient) request(img image.Image) (*structpb.Struct, error) {
	if img == nil {
		return nil, fmt.Errorf("no image provided")
	}
	data, err := frames.EncodeJPEG(img, 85)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(data),
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
}

func (c *GRPCClient) RecognizeText(ctx context.Context, img image.Image) (string, error) {
	req, err := c.request(img)
	if err != nil {
		return "", err
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(c.withAuth(ctx), recognizeTextMethod, req, resp); err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}

func (c *GRPCClient) DetectObjects(ctx context.Context, img image.Image) ([]Detection, error) {
	req, err := c.request(img)
	if err != nil {
		return nil, err
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(c.withAuth(ctx), detectObjectsMethod, req, resp); err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}
	return detectionsFromStruct(resp), nil
}

func detectionsFromStruct(s *structpb.Struct) []Detection {
	objects := s.GetFields()["objects"].GetListValue().GetValues()
	out := make([]Detection, 0, len(objects))
	for _, v := range objects {
		obj := v.GetStructValue().GetFields()
		box := obj["box"].GetStructValue().GetFields()
		d := Detection{
			Box: Box{
				Left:   int(box["left"].GetNumberValue()),
				Top:    int(box["top"].GetNumberValue()),
				Right:  int(box["right"].GetNumberValue()),
				Bottom: int(box["bottom"].GetNumberValue()),
			},
		}
		for _, l := range obj["labels"].GetListValue().GetValues() {
			lf := l.GetStructValue().GetFields()
			d.Labels = append(d.Labels, Label{
				Text:       lf["text"].GetStringValue(),
				Confidence: lf["confidence"].GetNumberValue(),
			})
		}
		out = append(out, d)
	}
	return out
}

func (c *GRPCClient) Check(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: perceptionService})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("perception status %s", resp.GetStatus().String())
	}
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
