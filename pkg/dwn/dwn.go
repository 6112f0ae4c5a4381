package dwn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/dwn/pkg/datastore"
	"github.com/cuemby/dwn/pkg/didsig"
	"github.com/cuemby/dwn/pkg/dwncid"
	"github.com/cuemby/dwn/pkg/eventlog"
	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/log"
	"github.com/cuemby/dwn/pkg/messagestore"
	"github.com/cuemby/dwn/pkg/metrics"
	"github.com/cuemby/dwn/pkg/protocolauth"
	"github.com/cuemby/dwn/pkg/recordversion"
	"github.com/cuemby/dwn/pkg/tagindex"
	"github.com/cuemby/dwn/pkg/tasks"
	"github.com/cuemby/dwn/pkg/types"
)

// pruneHandlerName is the tasks.Manager handler name registered for
// RecordsDelete pruning (spec.md §4.9).
const pruneHandlerName = "records.prune"

// Status is a Reply's outcome: an HTTP-aligned code plus a human detail
// (spec.md §6's status table, §7's error-detail tokens).
type Status struct {
	Code   int
	Detail string
}

// Reply is what ProcessMessage returns for every interface/method: most
// fields are zero except the ones the operation produces.
type Reply struct {
	Status       Status
	Record       *types.Message
	Entries      []*types.Message
	Cursor       string
	Subscription *Subscription
}

// Dwn is the composition root (spec.md §4.10, C10). See doc.go.
type Dwn struct {
	db        *kv.DB
	messages  *messagestore.Store
	data      *datastore.Store
	events    *eventlog.Log
	tags      *tagindex.Index
	records   *recordversion.Manager
	protocols *protocolauth.Engine
	taskMgr   *tasks.Manager
	resolver  didsig.DidResolver
	verifier  didsig.Verifier
	broker    *broker

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

// Open constructs every subsystem in dependency order and resumes any task
// left in flight by a prior process (spec.md §4.9's startup sweep runs
// before Open returns, so a caller's first ProcessMessage sees pruned state
// immediately — spec.md §8 scenario S6).
func Open(dataDir string, resolver didsig.DidResolver) (*Dwn, error) {
	db, err := kv.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("dwn: open db: %w", err)
	}
	messages, err := messagestore.Open(db)
	if err != nil {
		return nil, fmt.Errorf("dwn: open messagestore: %w", err)
	}
	data, err := datastore.Open(db)
	if err != nil {
		return nil, fmt.Errorf("dwn: open datastore: %w", err)
	}
	events, err := eventlog.Open(db)
	if err != nil {
		return nil, fmt.Errorf("dwn: open eventlog: %w", err)
	}
	tags, err := tagindex.Open(db)
	if err != nil {
		return nil, fmt.Errorf("dwn: open tagindex: %w", err)
	}
	records, err := recordversion.Open(db, messages, data, events, tags)
	if err != nil {
		return nil, fmt.Errorf("dwn: open recordversion: %w", err)
	}
	protocols, err := protocolauth.Open(db, messages, records)
	if err != nil {
		return nil, fmt.Errorf("dwn: open protocolauth: %w", err)
	}
	taskMgr, err := tasks.Open(db)
	if err != nil {
		return nil, fmt.Errorf("dwn: open tasks: %w", err)
	}

	d := &Dwn{
		db:          db,
		messages:    messages,
		data:        data,
		events:      events,
		tags:        tags,
		records:     records,
		protocols:   protocols,
		taskMgr:     taskMgr,
		resolver:    resolver,
		verifier:    didsig.DefaultVerifier{},
		broker:      newBroker(),
		tenantLocks: map[string]*sync.Mutex{},
	}
	log.WithComponent("dwn").Debug().Str("dataDir", dataDir).Msg("dwn opened")

	taskMgr.RegisterHandler(pruneHandlerName, func(tenantDid string, data map[string]any) error {
		recordId, _ := data["recordId"].(string)
		return d.records.PruneNonInitialWrites(tenantDid, recordId)
	})
	if err := taskMgr.Sweep(); err != nil {
		return nil, fmt.Errorf("dwn: startup sweep: %w", err)
	}
	taskMgr.Start()

	return d, nil
}

// Close tears every subsystem down in reverse dependency order, the same
// shape as the teacher's manager.Manager.Shutdown.
func (d *Dwn) Close() error {
	d.taskMgr.Stop()
	d.broker.stopAll()
	return d.db.Close()
}

func (d *Dwn) lock(tenantDid string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.tenantLocks[tenantDid]
	if !ok {
		l = &sync.Mutex{}
		d.tenantLocks[tenantDid] = l
	}
	return l
}

// ProcessMessage verifies msg's signature, authorizes it, and dispatches by
// interface/method (spec.md §4.10). Per-tenant operations serialize on a
// per-tenant mutex held for the call's duration (spec.md §5).
func (d *Dwn) ProcessMessage(ctx context.Context, tenantDid string, msg *types.Message, data []byte) (*Reply, error) {
	base := msg.Descriptor.Base()
	tenantLog := log.WithTenantDid(tenantDid)
	timer := metrics.NewTimer()
	reply, err := d.dispatch(ctx, tenantDid, msg, data)
	timer.ObserveDurationVec(metrics.MessageProcessingDuration, string(base.Interface), string(base.Method))
	status := "error"
	if reply != nil {
		status = fmt.Sprintf("%d", reply.Status.Code)
	}
	if err != nil {
		tenantLog.Error().Err(err).Str("interface", string(base.Interface)).Str("method", string(base.Method)).Msg("process message failed")
	}
	metrics.MessagesProcessedTotal.WithLabelValues(string(base.Interface), string(base.Method), status).Inc()
	return reply, err
}

// dispatch serializes per-tenant and routes msg by interface/method.
func (d *Dwn) dispatch(ctx context.Context, tenantDid string, msg *types.Message, data []byte) (*Reply, error) {
	l := d.lock(tenantDid)
	l.Lock()
	defer l.Unlock()

	base := msg.Descriptor.Base()
	switch base.Interface {
	case types.InterfaceRecords:
		switch base.Method {
		case types.MethodWrite:
			return d.processRecordsWrite(ctx, tenantDid, msg, data)
		case types.MethodRead:
			return d.processRecordsRead(ctx, tenantDid, msg)
		case types.MethodQuery:
			return d.processRecordsQuery(ctx, tenantDid, msg)
		case types.MethodSubscribe:
			return d.processRecordsSubscribe(ctx, tenantDid, msg)
		case types.MethodDelete:
			return d.processRecordsDelete(ctx, tenantDid, msg)
		}
	case types.InterfaceProtocols:
		switch base.Method {
		case types.MethodConfigure:
			return d.processProtocolsConfigure(ctx, tenantDid, msg)
		case types.MethodQuery:
			return d.processProtocolsQuery(ctx, tenantDid, msg)
		}
	case types.InterfacePermissions:
		switch base.Method {
		case types.MethodGrant:
			return d.processPermissionsGrant(ctx, tenantDid, msg)
		case types.MethodRevoke:
			return d.processPermissionsRevoke(ctx, tenantDid, msg)
		}
	case types.InterfaceEvents:
		if base.Method == types.MethodQuery {
			return d.processEventsQuery(ctx, tenantDid, msg)
		}
	}
	return nil, fmt.Errorf("dwn: unsupported interface/method %s/%s", base.Interface, base.Method)
}

// didFromKeyId extracts the DID portion of a JWS kid ("did:example:alice#key-1").
func didFromKeyId(kid string) string {
	if i := strings.Index(kid, "#"); i >= 0 {
		return kid[:i]
	}
	return kid
}

// verify checks msg's first signature against its signer's resolved keys,
// returning the signer DID. The payload is the descriptor CID, matching
// pkg/didsig's detached-payload convention.
func (d *Dwn) verify(ctx context.Context, msg *types.Message) (string, error) {
	if msg.Authorization == nil || len(msg.Authorization.Signatures) == 0 {
		return "", types.NewError(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature)
	}
	sig := msg.Authorization.Signatures[0]
	signerDid := didFromKeyId(sig.KeyId)
	keys, err := d.resolver.Resolve(ctx, signerDid)
	if err != nil {
		return "", types.Wrap(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature, err)
	}
	descCid, err := dwncid.DescriptorCid(msg.Descriptor)
	if err != nil {
		return "", err
	}
	if err := d.verifier.Verify([]byte(descCid), sig, keys); err != nil {
		return "", err
	}
	return signerDid, nil
}

// resolveAuthor returns the logical author of msg: the signer, unless the
// message carries a delegated grant, in which case the grant's own
// signature is verified and the grantor DID becomes the logical author
// (spec.md §4.7).
func (d *Dwn) resolveAuthor(ctx context.Context, tenantDid string, msg *types.Message, signerDid, operation, protocol string, messageTimestamp time.Time) (string, error) {
	auth := msg.Authorization
	if auth == nil || auth.AuthorDelegatedGrant == nil {
		return signerDid, nil
	}
	grantorDid, err := d.verify(ctx, auth.AuthorDelegatedGrant.Message)
	if err != nil {
		return "", err
	}
	return d.protocols.ValidateDelegatedGrant(tenantDid, grantorDid, msg, operation, protocol, messageTimestamp)
}

// authorizeRecordOp runs protocol authorization for an operation against an
// already-known record descriptor w, looking up the record's existing
// author first (spec.md §4.7's immutable-author and action-resolution
// checks apply uniformly to Write/Read/Query/Subscribe/Delete).
func (d *Dwn) authorizeRecordOp(tenantDid string, w types.RecordsWriteDescriptor, operation, signerDid string) error {
	existingAuthor := ""
	if a, found, err := d.records.Author(tenantDid, w.RecordId); err != nil {
		return err
	} else if found {
		existingAuthor = a
	}
	return d.protocols.Authorize(protocolauth.AuthorizeInput{
		TenantDid:      tenantDid,
		Operation:      operation,
		Protocol:       w.Protocol,
		ProtocolPath:   w.ProtocolPath,
		ParentId:       w.ParentId,
		Schema:         w.Schema,
		DataFormat:     w.DataFormat,
		Signer:         signerDid,
		Recipient:      w.Recipient,
		ExistingAuthor: existingAuthor,
		Tags:           w.Tags,
	})
}

// buildIndexes flattens a RecordsWrite's fixed fields and tags into the one
// naming convention pkg/indexenc's untyped map leaves to its caller: fixed
// fields by their bare name, tags prefixed "tags." (matching
// types.MessageFilter's documented property-name convention). Empty
// optional fields are omitted so they never spuriously match an equality
// condition against "".
func buildIndexes(w types.RecordsWriteDescriptor) map[string]any {
	idx := map[string]any{
		"recordId":    w.RecordId,
		"dataFormat":  w.DataFormat,
		"dateCreated": w.DateCreated.UnixNano(),
		"published":   w.Published,
	}
	if w.Protocol != "" {
		idx["protocol"] = w.Protocol
	}
	if w.ProtocolPath != "" {
		idx["protocolPath"] = w.ProtocolPath
	}
	if w.ContextId != "" {
		idx["contextId"] = w.ContextId
	}
	if w.Schema != "" {
		idx["schema"] = w.Schema
	}
	if w.ParentId != "" {
		idx["parentId"] = w.ParentId
	}
	if w.Recipient != "" {
		idx["recipient"] = w.Recipient
	}
	if w.DatePublished != nil {
		idx["datePublished"] = w.DatePublished.UnixNano()
	}
	for k, v := range w.Tags {
		idx["tags."+k] = v
	}
	return idx
}

func errorReply(err error) (*Reply, error) {
	if derr, ok := err.(*types.Error); ok {
		return &Reply{Status: Status{Code: derr.Status, Detail: derr.Detail}}, nil
	}
	return &Reply{Status: Status{Code: 500, Detail: err.Error()}}, nil
}

func isNotFound(err error) bool {
	derr, ok := err.(*types.Error)
	return ok && derr.Kind == types.KindNotFound
}

func (d *Dwn) processRecordsWrite(ctx context.Context, tenantDid string, msg *types.Message, data []byte) (*Reply, error) {
	w, ok := msg.Descriptor.(types.RecordsWriteDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a RecordsWrite descriptor")
	}
	if data != nil {
		if cid, err := dwncid.OfRawData(data); err != nil {
			return errorReply(err)
		} else if cid != w.DataCid {
			return errorReply(types.NewError(types.KindIntegrity, "dwn: dataCid does not match attached data"))
		}
	}

	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	author, err := d.resolveAuthor(ctx, tenantDid, msg, signerDid, "Write", w.Protocol, w.MessageTimestamp)
	if err != nil {
		return errorReply(err)
	}

	existingAuthor := ""
	if a, found, aerr := d.records.Author(tenantDid, w.RecordId); aerr != nil {
		return errorReply(aerr)
	} else if found {
		existingAuthor = a
	}
	if err := protocolauth.CheckAuthorMismatch(existingAuthor, author); err != nil {
		return errorReply(err)
	}

	expectedContextId := ""
	if w.Protocol != "" {
		expectedContextId, err = d.protocols.ComputeContextId(tenantDid, w.ParentId, w.RecordId)
		if err != nil {
			return errorReply(err)
		}
	}

	if err := d.protocols.Authorize(protocolauth.AuthorizeInput{
		TenantDid:      tenantDid,
		Operation:      "Write",
		Protocol:       w.Protocol,
		ProtocolPath:   w.ProtocolPath,
		ParentId:       w.ParentId,
		Schema:         w.Schema,
		DataFormat:     w.DataFormat,
		Signer:         signerDid,
		Recipient:      w.Recipient,
		ExistingAuthor: existingAuthor,
		Tags:           w.Tags,
	}); err != nil {
		return errorReply(err)
	}

	out, err := d.records.ProcessWrite(tenantDid, author, expectedContextId, msg, buildIndexes(w), data)
	if err != nil {
		return errorReply(err)
	}
	d.broker.publish(tenantDid, out)
	log.WithRecordId(w.RecordId).Debug().Str("tenantDid", tenantDid).Str("author", author).Msg("record write processed")
	return &Reply{Status: Status{Code: 202, Detail: "accepted"}, Record: out}, nil
}

func (d *Dwn) processRecordsRead(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	r, ok := msg.Descriptor.(types.RecordsReadDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a RecordsRead descriptor")
	}
	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}

	recordId := r.RecordId
	if recordId == "" && r.Filter != nil {
		matches, qerr := d.queryRecords(tenantDid, []map[string]filter.Condition{r.Filter.Properties})
		if qerr != nil {
			return errorReply(qerr)
		}
		if len(matches) == 0 {
			return errorReply(types.NewError(types.KindNotFound, "dwn: record not found"))
		}
		recordId = matches[0].Descriptor.(types.RecordsWriteDescriptor).RecordId
	}

	out, err := d.records.Read(tenantDid, recordId)
	if err != nil {
		return errorReply(err)
	}
	w := out.Descriptor.(types.RecordsWriteDescriptor)
	if err := d.authorizeRecordOp(tenantDid, w, "Read", signerDid); err != nil {
		return errorReply(err)
	}
	return &Reply{Status: Status{Code: 200, Detail: "ok"}, Record: out}, nil
}

// queryRecords resolves a disjunction of filter conjunctions against the
// current tag index, reading each matching record's latest message (absent
// or tombstoned records are skipped, not errors).
func (d *Dwn) queryRecords(tenantDid string, filters []map[string]filter.Condition) ([]*types.Message, error) {
	hits, err := d.tags.Query(tenantDid, filters, "")
	if err != nil {
		return nil, err
	}
	var out []*types.Message
	for _, h := range hits {
		msg, rerr := d.records.Read(tenantDid, h.MessageCid)
		if rerr != nil {
			if isNotFound(rerr) {
				continue
			}
			return nil, rerr
		}
		out = append(out, msg)
	}
	return out, nil
}

func (d *Dwn) processRecordsQuery(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	q, ok := msg.Descriptor.(types.RecordsQueryDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a RecordsQuery descriptor")
	}
	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	matches, err := d.queryRecords(tenantDid, []map[string]filter.Condition{q.Filter.Properties})
	if err != nil {
		return errorReply(err)
	}
	entries := make([]*types.Message, 0, len(matches))
	for _, m := range matches {
		w := m.Descriptor.(types.RecordsWriteDescriptor)
		if err := d.authorizeRecordOp(tenantDid, w, "Query", signerDid); err != nil {
			continue
		}
		entries = append(entries, m)
	}
	return &Reply{Status: Status{Code: 200, Detail: "ok"}, Entries: entries}, nil
}

func (d *Dwn) processRecordsSubscribe(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	s, ok := msg.Descriptor.(types.RecordsSubscribeDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a RecordsSubscribe descriptor")
	}
	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	match := func(candidate *types.Message) bool {
		w, ok := candidate.Descriptor.(types.RecordsWriteDescriptor)
		if !ok {
			return false
		}
		if !filter.MatchesAll(buildIndexes(w), s.Filter.Properties) {
			return false
		}
		return d.authorizeRecordOp(tenantDid, w, "Subscribe", signerDid) == nil
	}
	sub := d.broker.subscribe(tenantDid, match)
	return &Reply{Status: Status{Code: 200, Detail: "ok"}, Subscription: sub}, nil
}

func (d *Dwn) processRecordsDelete(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	del, ok := msg.Descriptor.(types.RecordsDeleteDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a RecordsDelete descriptor")
	}
	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}

	st, err := d.records.State(tenantDid, del.RecordId)
	if err != nil {
		return errorReply(err)
	}
	protocol := ""
	var w types.RecordsWriteDescriptor
	hasWrite := st.InitialWrite != nil
	if hasWrite {
		w = st.InitialWrite.Descriptor.(types.RecordsWriteDescriptor)
		protocol = w.Protocol
	}

	author, err := d.resolveAuthor(ctx, tenantDid, msg, signerDid, "Delete", protocol, del.MessageTimestamp)
	if err != nil {
		return errorReply(err)
	}

	if hasWrite {
		if err := d.authorizeRecordOp(tenantDid, w, "Delete", signerDid); err != nil {
			return errorReply(err)
		}
	}

	out, prune, err := d.records.ProcessDelete(tenantDid, author, msg)
	if err != nil {
		return errorReply(err)
	}
	if out == nil {
		// Absent or already-tombstoned record: idempotent no-op success
		// (spec.md §4.6, §8 property 6).
		return &Reply{Status: Status{Code: 202, Detail: "accepted"}}, nil
	}
	recordLog := log.WithRecordId(del.RecordId)
	if prune {
		if _, terr := d.taskMgr.Enqueue(tenantDid, pruneHandlerName, map[string]any{"recordId": del.RecordId}, time.Now()); terr != nil {
			recordLog.Error().Err(terr).Msg("enqueue prune task")
		}
	}
	d.broker.publish(tenantDid, out)
	recordLog.Debug().Str("tenantDid", tenantDid).Str("author", author).Msg("record delete processed")
	return &Reply{Status: Status{Code: 202, Detail: "accepted"}, Record: out}, nil
}

func (d *Dwn) processProtocolsConfigure(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	c, ok := msg.Descriptor.(types.ProtocolsConfigureDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a ProtocolsConfigure descriptor")
	}
	signerDid, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	if signerDid != tenantDid {
		return errorReply(types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationActionNotAllowed))
	}
	if err := d.protocols.Configure(tenantDid, c.Definition); err != nil {
		return errorReply(err)
	}
	return &Reply{Status: Status{Code: 202, Detail: "accepted"}, Record: msg}, nil
}

func (d *Dwn) processProtocolsQuery(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	q, ok := msg.Descriptor.(types.ProtocolsQueryDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not a ProtocolsQuery descriptor")
	}
	if _, err := d.verify(ctx, msg); err != nil {
		return errorReply(err)
	}
	defs, err := d.protocols.ListProtocols(tenantDid, q.Protocol)
	if err != nil {
		return errorReply(err)
	}
	entries := make([]*types.Message, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, &types.Message{Descriptor: types.ProtocolsConfigureDescriptor{Definition: def}})
	}
	return &Reply{Status: Status{Code: 200, Detail: "ok"}, Entries: entries}, nil
}

func (d *Dwn) processPermissionsGrant(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	if _, ok := msg.Descriptor.(types.PermissionsGrantDescriptor); !ok {
		return nil, fmt.Errorf("dwn: not a PermissionsGrant descriptor")
	}
	author, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	if author != tenantDid {
		return errorReply(types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationActionNotAllowed))
	}
	if _, err := d.messages.Put(tenantDid, author, msg); err != nil {
		return errorReply(err)
	}
	return &Reply{Status: Status{Code: 202, Detail: "accepted"}, Record: msg}, nil
}

func (d *Dwn) processPermissionsRevoke(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	if _, ok := msg.Descriptor.(types.PermissionsRevokeDescriptor); !ok {
		return nil, fmt.Errorf("dwn: not a PermissionsRevoke descriptor")
	}
	author, err := d.verify(ctx, msg)
	if err != nil {
		return errorReply(err)
	}
	if author != tenantDid {
		return errorReply(types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationActionNotAllowed))
	}
	if _, err := d.messages.Put(tenantDid, author, msg); err != nil {
		return errorReply(err)
	}
	return &Reply{Status: Status{Code: 202, Detail: "accepted"}, Record: msg}, nil
}

func (d *Dwn) processEventsQuery(ctx context.Context, tenantDid string, msg *types.Message) (*Reply, error) {
	q, ok := msg.Descriptor.(types.EventsQueryDescriptor)
	if !ok {
		return nil, fmt.Errorf("dwn: not an EventsQuery descriptor")
	}
	if _, err := d.verify(ctx, msg); err != nil {
		return errorReply(err)
	}
	filters := make([]map[string]filter.Condition, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, f.Properties)
	}
	hits, err := d.events.Query(tenantDid, filters, q.Cursor)
	if err != nil {
		return errorReply(err)
	}
	cursor := q.Cursor
	entries := make([]*types.Message, 0, len(hits))
	for _, h := range hits {
		m, found, gerr := d.messages.Get(tenantDid, h.MessageCid)
		if gerr != nil {
			return errorReply(gerr)
		}
		if found {
			entries = append(entries, m)
		}
		if h.Watermark > cursor {
			cursor = h.Watermark
		}
	}
	return &Reply{Status: Status{Code: 200, Detail: "ok"}, Entries: entries, Cursor: cursor}, nil
}
