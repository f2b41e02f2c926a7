package cmdtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// Config configures a Session.
type Config struct {
	// Name is the name of the root command node.
	Name string

	// Role tags protocol events with the local side.
	Role log.Role

	// DeviceID tags protocol events.
	DeviceID int

	// Logger receives diagnostics. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger receives message, binding and error events.
	ProtocolLogger log.Logger
}

// Session owns the memo table binding local nodes to their remote
// addresses.
//
// The session has no goroutine of its own. Inbound trees are dispatched on
// the caller's goroutine and node code may re-enter the session (emit,
// resolve, deinitialize) from within a dispatch. The session lock is never
// held while node code runs.
type Session struct {
	id     string
	root   Node
	cfg    Config
	plog   log.Logger
	logger *slog.Logger

	mu          sync.Mutex
	sender      Sender
	memo        map[Node]*binding
	rootBinding *binding
}

// binding is one memo-table entry.
type binding struct {
	s      *Session
	node   Node
	parent *binding
	seg    Segment
	path   Path

	children map[Segment]*binding
	order    []Segment

	// declared is the node's declaration captured at bind time.
	declared *CommandNode

	// interest holds member names results are accepted for.
	interest map[string]struct{}

	detached bool
}

// pass collects the bindings created while handling one operation.
type pass struct {
	bound []*binding
}

// NewSession creates a session for root. sender may be nil and set later.
func NewSession(root Node, sender Sender, cfg Config) *Session {
	return &Session{
		id:     uuid.New().String(),
		root:   root,
		cfg:    cfg,
		plog:   log.OrNoop(cfg.ProtocolLogger),
		logger: cfg.Logger,
		sender: sender,
		memo:   make(map[Node]*binding),
	}
}

// ID returns the session UUID.
func (s *Session) ID() string {
	return s.id
}

// Root returns the root node.
func (s *Session) Root() Node {
	return s.root
}

// SetSender replaces the transport.
func (s *Session) SetSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// Initialize binds the root, resolves every node-group entry the bound
// nodes declare and sends the folded declaration. Calling it again retries
// entries that failed to resolve and sends only what is new.
func (s *Session) Initialize(ctx context.Context) error {
	root, created := s.bindRoot()
	p := &pass{}
	if created {
		p.bound = append(p.bound, root)
	}
	s.expand(root, p)
	return s.flush(ctx, p)
}

// Resolve binds every segment of path that is not bound yet and returns the
// node at its end. Declarations of newly bound nodes are sent folded into
// one command. Resolving a bound path is a no-op.
func (s *Session) Resolve(ctx context.Context, path Path) (Node, error) {
	cur, created := s.bindRoot()
	p := &pass{}
	if created {
		p.bound = append(p.bound, cur)
	}

	var err error
	for _, seg := range path {
		var next *binding
		next, err = s.resolveChild(cur, seg.Group, seg.Key, p)
		if err != nil {
			s.reportResolveError(err)
			break
		}
		cur = next
	}

	if ferr := s.flush(ctx, p); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return nil, err
	}
	return cur.node, nil
}

// PathOf returns the cached path of a bound node.
func (s *Session) PathOf(node Node) (Path, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.memo[node]
	if !ok {
		return nil, false
	}
	return b.path, true
}

// IsBound reports whether node has a live binding.
func (s *Session) IsBound(node Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.memo[node]
	return ok
}

// Bound returns the number of live bindings.
func (s *Session) Bound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memo)
}

// HandleCommand applies an inbound command tree depth-first and returns
// the root-addressed result. Entries that cannot be resolved are logged and
// left out of the result; their siblings are still handled.
func (s *Session) HandleCommand(ctx context.Context, cmd *CommandNode) *ResultNode {
	if cmd == nil {
		return nil
	}
	s.logMessage(log.DirectionIn, log.MessageTypeCommand, SummarizeCommand(cmd))

	root, created := s.bindRoot()
	p := &pass{}
	if created {
		p.bound = append(p.bound, root)
	}

	res := s.dispatchCommand(root, cmd, p)
	if res == nil {
		res = &ResultNode{}
	}
	res.Name = cmd.Name

	if err := s.flush(ctx, p); err != nil {
		s.warnLog("sending declarations failed", "error", err)
	}
	if !res.IsEmpty() {
		s.logMessage(log.DirectionOut, log.MessageTypeResult, SummarizeResult(res))
	}
	return res
}

// HandleResult dispatches an inbound result tree depth-first. Members are
// delivered only to nodes that declared or emitted them; entries for
// unbound keys are ignored.
func (s *Session) HandleResult(_ context.Context, res *ResultNode) {
	if res == nil {
		return
	}
	s.logMessage(log.DirectionIn, log.MessageTypeResult, SummarizeResult(res))

	s.mu.Lock()
	root := s.rootBinding
	s.mu.Unlock()

	if root == nil {
		s.debugLog("result before initialization ignored")
		return
	}
	s.dispatchResult(root, res)
}

// Deinitialize unbinds node and every descendant it resolved, children
// first. The nodes can be resolved again later. It reports whether node
// was bound.
func (s *Session) Deinitialize(node Node) bool {
	s.mu.Lock()
	b, ok := s.memo[node]
	if !ok {
		s.mu.Unlock()
		return false
	}

	var order []*binding
	var collect func(*binding)
	collect = func(x *binding) {
		for _, seg := range x.order {
			collect(x.children[seg])
		}
		order = append(order, x)
	}
	collect(b)

	for _, x := range order {
		x.detached = true
		delete(s.memo, x.node)
	}
	if b.parent != nil {
		delete(b.parent.children, b.seg)
		b.parent.order = slices.DeleteFunc(b.parent.order, func(seg Segment) bool { return seg == b.seg })
	}
	if s.rootBinding == b {
		s.rootBinding = nil
	}
	s.mu.Unlock()

	for _, x := range order {
		x.node.Detach()
		s.logBinding(x, "BOUND", "UNBOUND")
	}
	return true
}

// Close deinitializes the whole tree.
func (s *Session) Close() error {
	s.Deinitialize(s.root)
	return nil
}

// bindRoot returns the root binding, creating it on first use.
func (s *Session) bindRoot() (*binding, bool) {
	s.mu.Lock()
	if b := s.rootBinding; b != nil {
		s.mu.Unlock()
		return b, false
	}
	s.mu.Unlock()

	decl := s.root.Declare().Clone()

	s.mu.Lock()
	if b := s.rootBinding; b != nil {
		s.mu.Unlock()
		return b, false
	}
	b := s.newBinding(s.root, nil, Segment{}, nil, decl)
	s.rootBinding = b
	s.mu.Unlock()

	s.root.Attach(b)
	s.logBinding(b, "", "BOUND")
	return b, true
}

// newBinding must be called with s.mu held.
func (s *Session) newBinding(node Node, parent *binding, seg Segment, path Path, decl *CommandNode) *binding {
	b := &binding{
		s:        s,
		node:     node,
		parent:   parent,
		seg:      seg,
		path:     path,
		children: make(map[Segment]*binding),
		declared: decl,
		interest: make(map[string]struct{}),
	}
	b.noteInterest(decl)
	s.memo[node] = b
	if parent != nil {
		parent.children[seg] = b
		parent.order = append(parent.order, seg)
	}
	return b
}

// resolveChild returns the binding at group/key below b, resolving and
// binding it on first contact. New bindings are recorded in p and their own
// declared entries are resolved in turn.
func (s *Session) resolveChild(b *binding, group string, key Key, p *pass) (*binding, error) {
	seg := Segment{Group: group, Key: key}

	s.mu.Lock()
	if b.detached {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotBound, b.path)
	}
	if c, ok := b.children[seg]; ok {
		s.mu.Unlock()
		return c, nil
	}
	path := b.path.Child(group, key)
	s.mu.Unlock()

	resolver, ok := b.node.(GroupResolver)
	if !ok {
		return nil, &ResolveError{Path: path, Err: ErrUnknownGroup}
	}
	obj, err := resolver.ResolveChild(group, key)
	if err != nil {
		if !errors.Is(err, ErrUnknownKey) && !errors.Is(err, ErrUnknownGroup) && !errors.Is(err, ErrWrongKind) {
			err = fmt.Errorf("%w: %w", ErrUnknownKey, err)
		}
		return nil, &ResolveError{Path: path, Err: err}
	}
	child, ok := obj.(Node)
	if !ok || child == nil {
		return nil, &ResolveError{Path: path, Err: fmt.Errorf("%w: %T", ErrWrongKind, obj)}
	}

	decl := child.Declare().Clone()

	s.mu.Lock()
	if b.detached {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotBound, b.path)
	}
	if c, ok := b.children[seg]; ok {
		s.mu.Unlock()
		return c, nil
	}
	if existing, ok := s.memo[child]; ok {
		s.mu.Unlock()
		return nil, &ResolveError{Path: path, Err: fmt.Errorf("%w: %s", ErrAlreadyBound, existing.path)}
	}
	nb := s.newBinding(child, b, seg, path, decl)
	s.mu.Unlock()

	child.Attach(nb)
	s.logBinding(nb, "", "BOUND")
	p.bound = append(p.bound, nb)

	s.expand(nb, p)
	return nb, nil
}

// expand resolves the node-group entries b declared.
func (s *Session) expand(b *binding, p *pass) {
	s.mu.Lock()
	decl := b.declared
	s.mu.Unlock()
	if decl == nil {
		return
	}

	for _, g := range decl.Groups {
		for _, e := range g.Entries {
			if _, err := s.resolveChild(b, g.Name, e.Key, p); err != nil {
				s.reportResolveError(err)
			}
		}
	}
}

// flush folds the declarations of the bindings created in p into one
// command and sends it.
func (s *Session) flush(ctx context.Context, p *pass) error {
	if len(p.bound) == 0 {
		return nil
	}

	out := &CommandNode{Name: s.cfg.Name}
	s.mu.Lock()
	for _, b := range p.bound {
		if b.detached || !b.declared.HasMembers() {
			continue
		}
		out.Merge(b.path.WrapCommand(b.declared.Local()))
	}
	s.mu.Unlock()

	if out.IsEmpty() {
		return nil
	}
	return s.send(ctx, out)
}

func (s *Session) dispatchCommand(b *binding, cmd *CommandNode, p *pass) *ResultNode {
	if cmd == nil || s.isDetached(b) {
		return nil
	}

	var res *ResultNode
	if cmd.HasMembers() {
		res = b.node.HandleCommand(cmd.Local())
	}
	if res == nil {
		res = &ResultNode{}
	}

	for _, g := range cmd.Groups {
		for _, e := range g.Entries {
			child, err := s.resolveChild(b, g.Name, e.Key, p)
			if err != nil {
				s.reportResolveError(err)
				continue
			}
			if cr := s.dispatchCommand(child, e.Node, p); cr != nil {
				res.AddChild(g.Name, e.Key, cr)
			}
		}
	}
	return res
}

func (s *Session) dispatchResult(b *binding, res *ResultNode) {
	if res == nil {
		return
	}

	s.mu.Lock()
	if b.detached {
		s.mu.Unlock()
		return
	}
	local := b.filter(res)
	s.mu.Unlock()

	if local.HasMembers() {
		b.node.HandleResult(local)
	}

	for _, g := range res.Groups {
		for _, e := range g.Entries {
			seg := Segment{Group: g.Name, Key: e.Key}
			s.mu.Lock()
			child := b.children[seg]
			detached := b.detached
			s.mu.Unlock()

			if detached {
				return
			}
			if child == nil {
				s.debugLog("result for unbound entry ignored", "path", b.path.Child(g.Name, e.Key).String())
				continue
			}
			s.dispatchResult(child, e.Node)
		}
	}
}

func (s *Session) isDetached(b *binding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return b.detached
}

func (s *Session) send(ctx context.Context, cmd *CommandNode) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return ErrNoSender
	}
	s.logMessage(log.DirectionOut, log.MessageTypeCommand, SummarizeCommand(cmd))
	return sender.SendCommand(ctx, cmd)
}

// Path returns the binding's cached path.
func (b *binding) Path() Path {
	return b.path
}

// Emit wraps cmd once per ancestor, from b up to the root, and sends it.
func (b *binding) Emit(ctx context.Context, cmd *CommandNode) error {
	if cmd == nil {
		return nil
	}
	s := b.s

	s.mu.Lock()
	if b.detached {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotBound, b.path)
	}
	b.noteInterest(cmd)
	s.mu.Unlock()

	wrapped := cmd
	for cur := b; ; {
		s.mu.Lock()
		detached, parent, seg := cur.detached, cur.parent, cur.seg
		s.mu.Unlock()

		if detached {
			return fmt.Errorf("%w: %s", ErrNotBound, cur.path)
		}
		if parent == nil {
			break
		}
		wrapped = wrapCommand(seg, wrapped)
		cur = parent
	}
	return s.send(ctx, wrapped)
}

// noteInterest must be called with s.mu held.
func (b *binding) noteInterest(cmd *CommandNode) {
	if cmd == nil {
		return
	}
	for _, p := range cmd.Properties {
		b.interest["p:"+p.Name] = struct{}{}
	}
	for _, e := range cmd.Events {
		b.interest["e:"+e.Name] = struct{}{}
	}
	for _, m := range cmd.Methods {
		b.interest["m:"+m.Name] = struct{}{}
	}
}

// filter must be called with s.mu held.
func (b *binding) filter(res *ResultNode) *ResultNode {
	out := &ResultNode{Name: res.Name}
	for _, p := range res.Properties {
		if _, ok := b.interest["p:"+p.Name]; ok {
			out.Properties = append(out.Properties, p)
		}
	}
	for _, e := range res.Events {
		if _, ok := b.interest["e:"+e.Name]; ok {
			out.Events = append(out.Events, e)
		}
	}
	for _, m := range res.Methods {
		if _, ok := b.interest["m:"+m.Name]; ok {
			out.Methods = append(out.Methods, m)
		}
	}
	return out
}

func (s *Session) reportResolveError(err error) {
	var rerr *ResolveError
	where := ""
	if errors.As(err, &rerr) {
		where = rerr.Path.String()
	}
	s.warnLog("node-group resolution failed", "path", where, "error", err)
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionLocal,
		Layer:     log.LayerTree,
		Category:  log.CategoryError,
		LocalRole: s.cfg.Role,
		DeviceID:  s.cfg.DeviceID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTree,
			Message: err.Error(),
			Context: where,
		},
	})
}

func (s *Session) logBinding(b *binding, from, to string) {
	s.debugLog("binding "+to, "path", b.path.String())
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionLocal,
		Layer:     log.LayerTree,
		Category:  log.CategoryState,
		LocalRole: s.cfg.Role,
		DeviceID:  s.cfg.DeviceID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBinding,
			OldState: from,
			NewState: to,
			Reason:   b.path.String(),
		},
	})
}

func (s *Session) logMessage(dir log.Direction, typ log.MessageType, msg *log.MessageEvent) {
	msg.Type = typ
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: dir,
		Layer:     log.LayerTree,
		Category:  log.CategoryMessage,
		LocalRole: s.cfg.Role,
		DeviceID:  s.cfg.DeviceID,
		Message:   msg,
	})
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append(args, "session", s.id)...)
	}
}

func (s *Session) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, append(args, "session", s.id)...)
	}
}

var (
	_ Handler = (*Session)(nil)
	_ Emitter = (*binding)(nil)
)
