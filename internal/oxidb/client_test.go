package oxidb_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/symeon158/CVF-Survey-App/internal/oxidb"
	"github.com/symeon158/CVF-Survey-App/internal/oxidb/oxidbtest"
)

func getClient(t *testing.T) (*oxidb.Client, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.NewServer()
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Close)

	c, err := oxidb.Connect(context.Background(), srv.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestPing(t *testing.T) {
	c, _ := getClient(t)

	pong, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if pong != "pong" {
		t.Fatalf("expected pong, got %q", pong)
	}
}

func TestInsertAndFind(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	if err := c.CreateCollection(ctx, "go_test"); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	result, err := c.Insert(ctx, "go_test", map[string]any{"name": "Alice", "age": 30})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if result["id"] == nil {
		t.Fatal("insert did not return id")
	}

	docs, err := c.Find(ctx, "go_test", map[string]any{"name": "Alice"}, nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0]["name"] != "Alice" {
		t.Fatalf("expected Alice, got %v", docs[0]["name"])
	}
}

func TestFindWithOptions(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := c.Insert(ctx, "go_test", map[string]any{"seq": i}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	limit, skip := 2, 1
	docs, err := c.Find(ctx, "go_test", map[string]any{}, &oxidb.FindOptions{
		Sort:  map[string]any{"seq": -1},
		Skip:  &skip,
		Limit: &limit,
	})
	if err != nil {
		t.Fatalf("find with options: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0]["seq"] != float64(4) || docs[1]["seq"] != float64(3) {
		t.Fatalf("unexpected order: %v, %v", docs[0]["seq"], docs[1]["seq"])
	}
}

func TestCount(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	for _, name := range []string{"Bob", "Bob", "Carol"} {
		if _, err := c.Insert(ctx, "go_test", map[string]any{"name": name}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	n, err := c.Count(ctx, "go_test", map[string]any{"name": "Bob"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}

func TestIndexes(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	if err := c.CreateIndex(ctx, "go_test", "name"); err != nil {
		t.Fatalf("create_index: %v", err)
	}
	if err := c.CreateCompositeIndex(ctx, "go_test", []string{"name", "age"}); err != nil {
		t.Fatalf("create_composite_index: %v", err)
	}
	if got := srv.Indexes("go_test"); len(got) != 2 {
		t.Fatalf("expected 2 indexes, got %v", got)
	}
}

func TestServerError(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	srv.FailWith("disk full")
	_, err := c.Insert(ctx, "go_test", map[string]any{"x": 1})
	var oxErr *oxidb.Error
	if !errors.As(err, &oxErr) {
		t.Fatalf("expected *oxidb.Error, got %T: %v", err, err)
	}
	if oxErr.Msg != "disk full" {
		t.Fatalf("unexpected message %q", oxErr.Msg)
	}

	srv.FailWith("write conflict on doc 7")
	_, err = c.Insert(ctx, "go_test", map[string]any{"x": 1})
	var conflict *oxidb.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *oxidb.ConflictError, got %T: %v", err, err)
	}

	srv.FailWith("")
	if _, err := c.Ping(ctx); err != nil {
		t.Fatalf("ping after recovery: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	c, _ := getClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDeadlineOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	c, err := oxidb.Connect(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	conn := <-accepted
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.Ping(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("ping did not honor the context deadline")
	}
}
