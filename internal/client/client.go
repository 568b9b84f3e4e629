// Package client is the gRPC client of the event-keeper server. It pushes
// tracker sessions as incremental or full saves.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/event-keeper/internal/api/eventsv1"
	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/convert"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/tracker"
)

// ErrNoPublicID is returned when a session has no public_id to push to.
var ErrNoPublicID = errors.New("session document has no public_id")

// Options configures Dial.
type Options struct {
	Token     string // bearer access token
	CAPath    string // PEM bundle; empty uses system roots
	Insecure  bool   // TLS without certificate verification (dev)
	Plaintext bool   // no TLS at all (local dev)
}

// Client wraps an Events connection.
type Client struct {
	cc  *grpc.ClientConn
	api eventsv1.EventsClient
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial connects to addr. Extra dial options are appended last.
func Dial(ctx context.Context, addr string, o Options, extra ...grpc.DialOption) (*Client, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(o.CAPath, o.Insecure)
		if err != nil {
			return nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Plaintext}))
	}
	opts = append(opts, extra...)
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, api: eventsv1.NewEventsClient(cc)}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

// Get fetches an event.
func (c *Client) Get(ctx context.Context, publicID string) (convert.EventResult, error) {
	return c.call(ctx, c.api.GetEvent, jsonval.Object{model.KeyPublicID: publicID})
}

// Save sends a flat save request.
func (c *Client) Save(ctx context.Context, req jsonval.Object) (convert.EventResult, error) {
	return c.call(ctx, c.api.SaveEvent, req)
}

// ApplyChanges sends an incremental envelope. status may be empty.
func (c *Client) ApplyChanges(ctx context.Context, publicID, status string, env *changeset.Envelope) (convert.EventResult, error) {
	req := env.ToObject()
	req[model.KeyPublicID] = publicID
	if status != "" {
		req[model.KeyStatus] = status
	}
	return c.call(ctx, c.api.ApplyChanges, req)
}

// History returns up to limit revisions, newest first. limit <= 0 uses the
// server default.
func (c *Client) History(ctx context.Context, publicID string, limit int) ([]model.Revision, error) {
	req := jsonval.Object{model.KeyPublicID: publicID}
	if limit > 0 {
		req[convert.KeyLimit] = limit
	}
	in, err := convert.ToStruct(req)
	if err != nil {
		return nil, err
	}
	out, err := c.api.GetHistory(ctx, in)
	if err != nil {
		return nil, err
	}
	return convert.FromHistoryResult(publicID, out)
}

type rpc func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) call(ctx context.Context, fn rpc, req jsonval.Object) (convert.EventResult, error) {
	in, err := convert.ToStruct(req)
	if err != nil {
		return convert.EventResult{}, err
	}
	out, err := fn(ctx, in)
	if err != nil {
		return convert.EventResult{}, err
	}
	return convert.FromEventResult(out)
}

// Push sends the unsaved changes of s as an incremental save and, on
// success, re-baselines s on the stored event. It returns false without a
// call when there is nothing to send.
func (c *Client) Push(ctx context.Context, s *tracker.Session, status string) (convert.EventResult, bool, error) {
	env := s.Payload()
	if env == nil && status == "" {
		return convert.EventResult{}, false, nil
	}
	publicID := publicIDOf(s)
	if publicID == "" {
		return convert.EventResult{}, false, ErrNoPublicID
	}
	if env == nil {
		env = &changeset.Envelope{
			Changes:  &changeset.ChangeSet{},
			Metadata: changeset.Metadata{LastSaved: s.LastSaved(), ConflictToken: s.ConflictToken()},
		}
	}
	res, err := c.ApplyChanges(ctx, publicID, status, env)
	if err != nil {
		return convert.EventResult{}, false, fmt.Errorf("apply changes: %w", err)
	}
	s.Initialize(res.Event)
	return res, true, nil
}

// SaveFull sends the whole working document of s as a flat save carrying
// the session's conflict token, then re-baselines s on the stored event.
func (c *Client) SaveFull(ctx context.Context, s *tracker.Session, status string) (convert.EventResult, error) {
	req := s.FullData()
	if req == nil {
		req = jsonval.Object{}
	}
	delete(req, model.KeyStatus)
	if status != "" {
		req[model.KeyStatus] = status
	}
	if tok := s.ConflictToken(); tok != "" && publicIDOf(s) != "" {
		req[model.KeyConflictToken] = tok
	}
	res, err := c.Save(ctx, req)
	if err != nil {
		return convert.EventResult{}, fmt.Errorf("save: %w", err)
	}
	s.Initialize(res.Event)
	return res, nil
}

func publicIDOf(s *tracker.Session) string {
	doc := s.FullData()
	id, _ := doc[model.KeyPublicID].(string)
	return id
}
