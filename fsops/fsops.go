// Package fsops is a minimal example remote interface standing in for
// spec.md §1's excluded "virtual file object surface" and "concrete
// file-system handlers": an in-memory, mutex-guarded path->bytes map
// exposing ReadBytes/WriteBytes/CreateFile/DeleteFile, wired to rpcsig and
// dispatch only far enough to drive the testable scenarios of spec.md §8
// (ping, empty-file read, unknown method, callback fan-out on write). It
// is explicitly a demo/test fixture, not a filesystem implementation --
// grounded on original_source/.../rfs_methods/fs.rs, rfs/fs.rs, and
// rfs/interfaces.rs for the operation shapes (read/write/create/delete by
// path), reimplemented by hand per spec.md §9 instead of proc-macro
// generated.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ridgewireio/dgrpc/callback"
	"github.com/ridgewireio/dgrpc/dispatch"
	"github.com/ridgewireio/dgrpc/rpc"
	"github.com/ridgewireio/dgrpc/rpcsig"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/ridgewireio/dgrpc/wire"
)

// Trait is the signature namespace this package's methods are registered
// under (spec.md §3: "<TraitName>::method_name").
const Trait = "PrimitiveFsOps"

var (
	sigReadBytes   = rpcsig.New(Trait, "read_bytes")
	sigWriteBytes  = rpcsig.New(Trait, "write_bytes")
	sigCreateFile  = rpcsig.New(Trait, "create_file")
	sigDeleteFile  = rpcsig.New(Trait, "delete_file")
	sigRegisterUpd = rpcsig.New(Trait, "register_file_update")
)

// ErrNotFound is returned by the read_bytes/delete_file handlers when path
// does not exist in the store. A client calling ReadBytes/DeleteFile sees
// it as an InvokeError of kind HandlerFailed.
var ErrNotFound = errors.New("fsops: path not found")

// ErrAlreadyExists is returned by the create_file handler when path already
// exists. A client calling CreateFile sees it as an InvokeError of kind
// HandlerFailed.
var ErrAlreadyExists = errors.New("fsops: path already exists")

// Store is the in-memory backing map. The zero value is not usable;
// construct one with NewStore.
type Store struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{files: make(map[string][]byte)}
}

func (s *Store) read(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	out := make([]byte, len(b))
	copy(out, b)
	return out, ok
}

func (s *Store) write(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[path] = cp
}

func (s *Store) create(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok {
		return ErrAlreadyExists
	}
	s.files[path] = nil
	return nil
}

func (s *Store) delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return ErrNotFound
	}
	delete(s.files, path)
	return nil
}

// FileUpdate is the callback payload delivered to subscribers of
// register_file_update when the subscribed path changes (spec.md §8
// scenario 6).
type FileUpdate struct {
	Path string
	Kind UpdateKind
}

// UpdateKind discriminates the reason a FileUpdate fired.
type UpdateKind int

const (
	UpdateWritten UpdateKind = iota
	UpdateCreated
	UpdateDeleted
)

var updateKindNames = map[UpdateKind]string{
	UpdateWritten: "Written",
	UpdateCreated: "Created",
	UpdateDeleted: "Deleted",
}

var updateKindByName = func() map[string]UpdateKind {
	m := make(map[string]UpdateKind, len(updateKindNames))
	for k, v := range updateKindNames {
		m[v] = k
	}
	return m
}()

func (k UpdateKind) String() string {
	if s, ok := updateKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

func (u *FileUpdate) MarshalWire(w *wire.Writer) {
	w.BeginMap()
	w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("path") }, func(w *wire.Writer) { w.WriteString(u.Path) })
	w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("kind") }, func(w *wire.Writer) { w.WriteString(u.Kind.String()) })
	w.EndMap()
}

func (u *FileUpdate) UnmarshalWire(r *wire.Reader) error {
	if err := r.BeginMap(); err != nil {
		return err
	}
	for {
		has, err := r.MapHasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		if err := r.BeginMapEntry(); err != nil {
			return err
		}
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		if err := r.MapEntryMid(); err != nil {
			return err
		}
		switch key {
		case "path":
			u.Path, err = r.ReadString()
		case "kind":
			var name string
			name, err = r.ReadString()
			if err == nil {
				k, ok := updateKindByName[name]
				if !ok {
					return &wire.Error{Kind: wire.UnexpectedData, Msg: "unknown UpdateKind " + name}
				}
				u.Kind = k
			}
		}
		if err != nil {
			return err
		}
		if err := r.MapEntryEnd(); err != nil {
			return err
		}
	}
	return r.EndMap()
}

// ---- Request/response payloads (spec.md §9: two-variant union per method,
// realized as one hand-written Request/Response struct pair per method). ----

type ReadBytesRequest struct{ Path string }

func (r *ReadBytesRequest) MarshalWire(w *wire.Writer) { w.WriteString(r.Path) }
func (r *ReadBytesRequest) UnmarshalWire(rd *wire.Reader) error {
	s, err := rd.ReadString()
	r.Path = s
	return err
}

type ReadBytesResponse struct{ Data []byte }

func (r *ReadBytesResponse) MarshalWire(w *wire.Writer) { w.WriteBytes(r.Data) }
func (r *ReadBytesResponse) UnmarshalWire(rd *wire.Reader) error {
	b, err := rd.ReadBytes()
	r.Data = b
	return err
}

type WriteBytesRequest struct {
	Path string
	Data []byte
}

func (r *WriteBytesRequest) MarshalWire(w *wire.Writer) {
	w.BeginSeqConst()
	w.WriteString(r.Path)
	w.WriteBytes(r.Data)
	w.EndSeqConst()
}
func (r *WriteBytesRequest) UnmarshalWire(rd *wire.Reader) error {
	if err := rd.BeginSeqConst(); err != nil {
		return err
	}
	path, err := rd.ReadString()
	if err != nil {
		return err
	}
	data, err := rd.ReadBytes()
	if err != nil {
		return err
	}
	if err := rd.EndSeqConst(); err != nil {
		return err
	}
	r.Path, r.Data = path, data
	return nil
}

type WriteBytesResponse struct{}

func (r *WriteBytesResponse) MarshalWire(w *wire.Writer)          { w.WriteUnit() }
func (r *WriteBytesResponse) UnmarshalWire(rd *wire.Reader) error { return rd.ReadUnit() }

type CreateFileRequest struct{ Path string }

func (r *CreateFileRequest) MarshalWire(w *wire.Writer) { w.WriteString(r.Path) }
func (r *CreateFileRequest) UnmarshalWire(rd *wire.Reader) error {
	s, err := rd.ReadString()
	r.Path = s
	return err
}

type CreateFileResponse struct{}

func (r *CreateFileResponse) MarshalWire(w *wire.Writer)          { w.WriteUnit() }
func (r *CreateFileResponse) UnmarshalWire(rd *wire.Reader) error { return rd.ReadUnit() }

type DeleteFileRequest struct{ Path string }

func (r *DeleteFileRequest) MarshalWire(w *wire.Writer) { w.WriteString(r.Path) }
func (r *DeleteFileRequest) UnmarshalWire(rd *wire.Reader) error {
	s, err := rd.ReadString()
	r.Path = s
	return err
}

type DeleteFileResponse struct{}

func (r *DeleteFileResponse) MarshalWire(w *wire.Writer)          { w.WriteUnit() }
func (r *DeleteFileResponse) UnmarshalWire(rd *wire.Reader) error { return rd.ReadUnit() }

// RegisterFileUpdateRequest names the path to watch and the address the
// subscriber wants the callback delivered to. The original source
// (rfs_core/middleware/callback.rs's RemoteCallback::new) takes that
// return address as an explicit constructor argument rather than
// inferring it from the request's UDP source address, which is what this
// carries over: ReturnIP/ReturnPort are the client's own listening
// socket, set by the client stub below, not read off the datagram by the
// dispatcher.
type RegisterFileUpdateRequest struct {
	Path       string
	ReturnIP   string
	ReturnPort uint16
}

func (r *RegisterFileUpdateRequest) MarshalWire(w *wire.Writer) {
	w.BeginSeqConst()
	w.WriteString(r.Path)
	w.WriteString(r.ReturnIP)
	w.WriteUint(uint64(r.ReturnPort))
	w.EndSeqConst()
}
func (r *RegisterFileUpdateRequest) UnmarshalWire(rd *wire.Reader) error {
	if err := rd.BeginSeqConst(); err != nil {
		return err
	}
	path, err := rd.ReadString()
	if err != nil {
		return err
	}
	ip, err := rd.ReadString()
	if err != nil {
		return err
	}
	port, err := rd.ReadUint()
	if err != nil {
		return err
	}
	if err := rd.EndSeqConst(); err != nil {
		return err
	}
	r.Path, r.ReturnIP, r.ReturnPort = path, ip, uint16(port)
	return nil
}

type RegisterFileUpdateResponse struct{}

func (r *RegisterFileUpdateResponse) MarshalWire(w *wire.Writer)          { w.WriteUnit() }
func (r *RegisterFileUpdateResponse) UnmarshalWire(rd *wire.Reader) error { return rd.ReadUnit() }

// errToDeserialization wraps a deserialization error so
// dispatch.Dispatcher classifies it as InvokeError::DeserializationFailed
// instead of the generic HandlerFailed (spec.md §4.5).
func errToDeserialization(err error) error {
	return fmt.Errorf("%w: %v", dispatch.ErrDeserialization, err)
}

// ServerSocket is the dispatcher's own socket/protocol/timing, needed by
// register_file_update to build the callback.Subscriber it hands to cb --
// the callback fan-out replies over the same socket the server listens
// on, mirroring rfs_server/server/callbacks.rs binding a fresh socket off
// the same bind_addr/proto/timeout/retries as the main server.
type ServerSocket struct {
	Conn    net.PacketConn
	Proto   transport.Protocol
	Timeout time.Duration
	Retries int
}

// Register wires every fsops handler into reg against store, firing cb's
// registered subscribers whenever write_bytes/create_file/delete_file
// succeed against a path that has pending registrations (spec.md §8
// scenario 6), and wires register_file_update against cb using sock to
// reach the address the request names.
func Register(reg *rpcsig.Registry, store *Store, cb *callback.Registry, sock ServerSocket) {
	reg.Register(sigReadBytes, func(body []byte) ([]byte, error) {
		var req ReadBytesRequest
		if err := wire.Unmarshal(body, &req); err != nil {
			return nil, errToDeserialization(err)
		}
		data, ok := store.read(req.Path)
		if !ok {
			return nil, fmt.Errorf("fsops: %w: %s", ErrNotFound, req.Path)
		}
		return wire.Marshal(&ReadBytesResponse{Data: data}), nil
	})

	reg.Register(sigWriteBytes, func(body []byte) ([]byte, error) {
		var req WriteBytesRequest
		if err := wire.Unmarshal(body, &req); err != nil {
			return nil, errToDeserialization(err)
		}
		store.write(req.Path, req.Data)
		if cb != nil {
			cb.Trigger(context.Background(), req.Path, &FileUpdate{Path: req.Path, Kind: UpdateWritten})
		}
		return wire.Marshal(&WriteBytesResponse{}), nil
	})

	reg.Register(sigCreateFile, func(body []byte) ([]byte, error) {
		var req CreateFileRequest
		if err := wire.Unmarshal(body, &req); err != nil {
			return nil, errToDeserialization(err)
		}
		if err := store.create(req.Path); err != nil {
			return nil, err
		}
		if cb != nil {
			cb.Trigger(context.Background(), req.Path, &FileUpdate{Path: req.Path, Kind: UpdateCreated})
		}
		return wire.Marshal(&CreateFileResponse{}), nil
	})

	reg.Register(sigDeleteFile, func(body []byte) ([]byte, error) {
		var req DeleteFileRequest
		if err := wire.Unmarshal(body, &req); err != nil {
			return nil, errToDeserialization(err)
		}
		if err := store.delete(req.Path); err != nil {
			return nil, err
		}
		if cb != nil {
			cb.Trigger(context.Background(), req.Path, &FileUpdate{Path: req.Path, Kind: UpdateDeleted})
		}
		return wire.Marshal(&DeleteFileResponse{}), nil
	})

	reg.Register(sigRegisterUpd, func(body []byte) ([]byte, error) {
		var req RegisterFileUpdateRequest
		if err := wire.Unmarshal(body, &req); err != nil {
			return nil, errToDeserialization(err)
		}
		addr := &net.UDPAddr{IP: net.ParseIP(req.ReturnIP), Port: int(req.ReturnPort)}
		cb.Register(req.Path, callback.Subscriber{
			Addr:    addr,
			Conn:    sock.Conn,
			Proto:   sock.Proto,
			Timeout: sock.Timeout,
			Retries: sock.Retries,
		})
		return wire.Marshal(&RegisterFileUpdateResponse{}), nil
	})
}

// RegisterFileUpdate is the client stub for register_file_update: it
// reports listenAddr (the client's own receiving socket) as the return
// address the server should deliver callbacks to.
func RegisterFileUpdate(ctx context.Context, cm *rpc.ContextManager, path string, listenAddr *net.UDPAddr) error {
	var resp RegisterFileUpdateResponse
	req := &RegisterFileUpdateRequest{Path: path, ReturnIP: listenAddr.IP.String(), ReturnPort: uint16(listenAddr.Port)}
	return rpc.Call(ctx, cm, sigRegisterUpd, req, &resp)
}

// ---- Client stubs (spec.md §9: "a generic call<Req, Resp> helper" is an
// acceptable substitute for per-method generated stubs). ----

func ReadBytes(ctx context.Context, cm *rpc.ContextManager, path string) ([]byte, error) {
	var resp ReadBytesResponse
	if err := rpc.Call(ctx, cm, sigReadBytes, &ReadBytesRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func WriteBytes(ctx context.Context, cm *rpc.ContextManager, path string, data []byte) error {
	var resp WriteBytesResponse
	return rpc.Call(ctx, cm, sigWriteBytes, &WriteBytesRequest{Path: path, Data: data}, &resp)
}

func CreateFile(ctx context.Context, cm *rpc.ContextManager, path string) error {
	var resp CreateFileResponse
	return rpc.Call(ctx, cm, sigCreateFile, &CreateFileRequest{Path: path}, &resp)
}

func DeleteFile(ctx context.Context, cm *rpc.ContextManager, path string) error {
	var resp DeleteFileResponse
	return rpc.Call(ctx, cm, sigDeleteFile, &DeleteFileRequest{Path: path}, &resp)
}
