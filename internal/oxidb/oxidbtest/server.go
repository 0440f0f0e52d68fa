// Package oxidbtest runs an in-memory oxidb-server speaking the wire
// protocol, for tests.
package oxidbtest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
)

// Server holds documents per collection and answers the subset of commands
// the client issues.
type Server struct {
	ln net.Listener

	mu          sync.Mutex
	collections map[string][]map[string]any
	indexes     map[string][]string
	nextID      int
	fail        string
	wg          sync.WaitGroup
}

// NewServer starts a server on a random loopback port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:          ln,
		collections: make(map[string][]map[string]any),
		indexes:     make(map[string][]string),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// FailWith makes every following command return msg as a server error.
// An empty msg restores normal operation.
func (s *Server) FailWith(msg string) {
	s.mu.Lock()
	s.fail = msg
	s.mu.Unlock()
}

// Docs returns a copy of the documents stored in collection.
func (s *Server) Docs(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.collections[collection]...)
}

// Indexes lists the index specs created on collection.
func (s *Server) Indexes(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.indexes[collection]...)
}

func (s *Server) Close() {
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	var conns sync.WaitGroup
	var open []net.Conn
	var openMu sync.Mutex
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			openMu.Lock()
			for _, c := range open {
				c.Close()
			}
			openMu.Unlock()
			conns.Wait()
			return
		}
		openMu.Lock()
		open = append(open, conn)
		openMu.Unlock()
		conns.Add(1)
		go func() {
			defer conns.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var req map[string]any
		var resp map[string]any
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else {
			resp = s.dispatch(req)
		}
		out, _ := json.Marshal(resp)
		frame := make([]byte, 4+len(out))
		binary.LittleEndian.PutUint32(frame, uint32(len(out)))
		copy(frame[4:], out)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != "" {
		return map[string]any{"ok": false, "error": s.fail}
	}
	coll, _ := req["collection"].(string)
	switch req["cmd"] {
	case "ping":
		return ok("pong")
	case "create_collection":
		if _, exists := s.collections[coll]; !exists {
			s.collections[coll] = nil
		}
		return ok("ok")
	case "insert":
		doc, _ := req["doc"].(map[string]any)
		s.nextID++
		stored := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			stored[k] = v
		}
		stored["_id"] = s.nextID
		s.collections[coll] = append(s.collections[coll], stored)
		return ok(map[string]any{"id": s.nextID})
	case "find":
		query, _ := req["query"].(map[string]any)
		docs := s.match(coll, query)
		if spec, _ := req["sort"].(map[string]any); len(spec) > 0 {
			sortDocs(docs, spec)
		}
		if skip, has := req["skip"].(float64); has {
			docs = docs[min(int(skip), len(docs)):]
		}
		if limit, has := req["limit"].(float64); has {
			docs = docs[:min(int(limit), len(docs))]
		}
		return ok(docs)
	case "count":
		query, _ := req["query"].(map[string]any)
		return ok(map[string]any{"count": len(s.match(coll, query))})
	case "create_index":
		s.indexes[coll] = append(s.indexes[coll], fmt.Sprint(req["field"]))
		return ok("ok")
	case "create_composite_index":
		s.indexes[coll] = append(s.indexes[coll], fmt.Sprint(req["fields"]))
		return ok("ok")
	}
	return map[string]any{"ok": false, "error": fmt.Sprintf("unknown command %v", req["cmd"])}
}

func (s *Server) match(coll string, query map[string]any) []map[string]any {
	var out []map[string]any
	for _, doc := range s.collections[coll] {
		hit := true
		for k, want := range query {
			if fmt.Sprint(doc[k]) != fmt.Sprint(want) {
				hit = false
				break
			}
		}
		if hit {
			out = append(out, doc)
		}
	}
	return out
}

func sortDocs(docs []map[string]any, spec map[string]any) {
	for field, dir := range spec {
		desc := fmt.Sprint(dir) == "-1"
		sort.SliceStable(docs, func(i, j int) bool {
			less := compare(docs[i][field], docs[j][field])
			if desc {
				return less > 0
			}
			return less < 0
		})
		return
	}
}

func compare(a, b any) int {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func ok(data any) map[string]any {
	return map[string]any{"ok": true, "data": data}
}
