package adaptor_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ponyo877/livedeck/livepb"
	"github.com/ponyo877/livedeck/server/adaptor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *testServer) grpcClient(t *testing.T) livepb.LiveServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(adaptor.NewUnaryLogger(newTestLogger())),
		grpc.ChainStreamInterceptor(adaptor.NewStreamLogger(newTestLogger())),
	)
	livepb.RegisterLiveServiceServer(srv, s.adaptor)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return livepb.NewLiveServiceClient(conn)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := livepb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}
	return s
}

func TestGRPCPresenterFlow(t *testing.T) {
	s := newTestServer(t)
	client := s.grpcClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.AuthorizePresenter(ctx, mustStruct(t, map[string]any{
		livepb.FieldPresentationUID: "deck",
		livepb.FieldPassword:        "wrong",
	}))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("wrong password code = %v", status.Code(err))
	}

	out, err := client.AuthorizePresenter(ctx, mustStruct(t, map[string]any{
		livepb.FieldPresentationUID: "deck",
		livepb.FieldPassword:        "pw",
	}))
	if err != nil {
		t.Fatalf("AuthorizePresenter failed: %v", err)
	}
	token := livepb.GetString(out, livepb.FieldToken)
	if token == "" {
		t.Fatal("no token returned")
	}

	stream, err := client.Subscribe(ctx, mustStruct(t, map[string]any{livepb.FieldChannel: "presentation.deck"}))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	s.waitForSubscribers(t, "presentation.deck", 1)

	publish := mustStruct(t, map[string]any{livepb.FieldPresentationUID: "deck", livepb.FieldSlideIndex: 2})
	if _, err := client.PublishSlideChange(ctx, publish); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("publish without token code = %v", status.Code(err))
	}

	presenterCtx := metadata.AppendToOutgoingContext(ctx, livepb.MetadataPresenterToken, token)
	out, err = client.PublishSlideChange(presenterCtx, publish)
	if err != nil {
		t.Fatalf("PublishSlideChange failed: %v", err)
	}
	if got := livepb.GetString(out, livepb.FieldOutcome); got != "broadcast" {
		t.Errorf("outcome = %q", got)
	}

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if livepb.GetString(msg, livepb.FieldEvent) != "slide-change" {
		t.Errorf("unexpected event: %v", msg)
	}
	data := msg.GetFields()[livepb.FieldData].GetStructValue()
	if data.GetFields()["slideIndex"].GetNumberValue() != 2 {
		t.Errorf("unexpected data: %v", data)
	}

	state, err := client.GetSlideState(ctx, mustStruct(t, map[string]any{livepb.FieldPresentationUID: "deck"}))
	if err != nil {
		t.Fatalf("GetSlideState failed: %v", err)
	}
	if !livepb.GetBool(state, livepb.FieldKnown) || livepb.GetInt(state, livepb.FieldSlideIndex) != 2 {
		t.Errorf("unexpected state: %v", state)
	}
}

func TestGRPCErrors(t *testing.T) {
	s := newTestServer(t)
	client := s.grpcClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.ReportPosition(ctx, mustStruct(t, map[string]any{livepb.FieldSessionID: "ghost", livepb.FieldSlideIndex: 1}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown session code = %v", status.Code(err))
	}
	_, err = client.ReportPosition(ctx, mustStruct(t, map[string]any{livepb.FieldSessionID: "ghost"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("missing slide index code = %v", status.Code(err))
	}
	_, err = client.GetSlideState(ctx, mustStruct(t, map[string]any{livepb.FieldPresentationUID: "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown presentation code = %v", status.Code(err))
	}
	_, err = client.ListActiveParticipants(ctx, mustStruct(t, map[string]any{livepb.FieldPresentationID: s.deck.ID}))
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("anonymous participants code = %v", status.Code(err))
	}

	stream, err := client.Subscribe(ctx, mustStruct(t, map[string]any{livepb.FieldChannel: "private-presenter-1"}))
	if err == nil {
		_, err = stream.Recv()
	}
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("private subscribe code = %v", status.Code(err))
	}
}

func TestGRPCListActiveParticipants(t *testing.T) {
	s := newTestServer(t)
	client := s.grpcClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.do(t, request{method: "POST", path: "/p/deck/register", body: map[string]any{"session_id": "s1", "name": "Alice"}})

	ownerCtx := metadata.AppendToOutgoingContext(ctx, livepb.MetadataAuthorization, "Bearer "+s.identityToken(t, 7))
	out, err := client.ListActiveParticipants(ownerCtx, mustStruct(t, map[string]any{livepb.FieldPresentationID: s.deck.ID}))
	if err != nil {
		t.Fatalf("ListActiveParticipants failed: %v", err)
	}
	list := livepb.GetList(out, livepb.FieldParticipants)
	if len(list) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(list))
	}
	p := list[0].GetStructValue()
	if livepb.GetString(p, livepb.FieldName) != "Alice" || livepb.Has(p, livepb.FieldCurrentSlide) {
		t.Errorf("unexpected participant: %v", p)
	}
}

func TestGRPCRejectsMalformedSlideIndex(t *testing.T) {
	s := newTestServer(t)
	client := s.grpcClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	presenterCtx := metadata.AppendToOutgoingContext(ctx, livepb.MetadataPresenterToken, s.presenterToken(t, "deck"))
	for _, index := range []any{1.9, 1e19, -1, "2"} {
		publish := mustStruct(t, map[string]any{livepb.FieldPresentationUID: "deck", livepb.FieldSlideIndex: index})
		if _, err := client.PublishSlideChange(presenterCtx, publish); status.Code(err) != codes.InvalidArgument {
			t.Errorf("publish slide_index=%v code = %v", index, status.Code(err))
		}
		report := mustStruct(t, map[string]any{livepb.FieldSessionID: "ghost", livepb.FieldSlideIndex: index})
		if _, err := client.ReportPosition(ctx, report); status.Code(err) != codes.InvalidArgument {
			t.Errorf("report slide_index=%v code = %v", index, status.Code(err))
		}
	}

	state, err := client.GetSlideState(ctx, mustStruct(t, map[string]any{livepb.FieldPresentationUID: "deck"}))
	if err != nil {
		t.Fatalf("GetSlideState failed: %v", err)
	}
	if livepb.GetBool(state, livepb.FieldKnown) {
		t.Errorf("rejected publishes must not change state: %v", state)
	}
}
