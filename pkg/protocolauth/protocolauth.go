package protocolauth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/dwn/pkg/dwncid"
	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/messagestore"
	"github.com/cuemby/dwn/pkg/recordversion"
	"github.com/cuemby/dwn/pkg/tagschema"
	"github.com/cuemby/dwn/pkg/types"
)

// Engine resolves protocol authorization for record operations.
type Engine struct {
	root     *kv.Partition
	messages *messagestore.Store
	records  *recordversion.Manager

	mu      sync.Mutex
	tenants map[string]*kv.Partition
}

// Open opens (creating if necessary) the "protocols" top-level partition.
func Open(db *kv.DB, messages *messagestore.Store, records *recordversion.Manager) (*Engine, error) {
	root, err := db.Partition("protocols")
	if err != nil {
		return nil, fmt.Errorf("protocolauth: open: %w", err)
	}
	return &Engine{root: root, messages: messages, records: records, tenants: map[string]*kv.Partition{}}, nil
}

func (e *Engine) tenant(tenantDid string) (*kv.Partition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.tenants[tenantDid]; ok {
		return p, nil
	}
	p, err := e.root.Partition(tenantDid)
	if err != nil {
		return nil, err
	}
	e.tenants[tenantDid] = p
	return p, nil
}

// Configure registers (or replaces) a protocol definition for a tenant,
// rejecting any $tags fragment outside the supported subset (spec.md §4.8)
// before it can ever be exercised by a write.
func (e *Engine) Configure(tenantDid string, def types.ProtocolDefinition) error {
	for path, rs := range def.Structure {
		if err := validateRuleSetTree(path, rs); err != nil {
			return err
		}
	}
	p, err := e.tenant(tenantDid)
	if err != nil {
		return err
	}
	raw, err := cbor.Marshal(def)
	if err != nil {
		return fmt.Errorf("protocolauth: encode protocol: %w", err)
	}
	return p.Put([]byte(def.Protocol), raw)
}

func validateRuleSetTree(path string, rs *types.RuleSet) error {
	if rs == nil {
		return nil
	}
	if rs.Tags != nil {
		if err := tagschema.ValidateFragment(rs.Tags); err != nil {
			return err
		}
	}
	for name, child := range rs.Children {
		if err := validateRuleSetTree(path+"/"+name, child); err != nil {
			return err
		}
	}
	return nil
}

// GetProtocol returns a tenant's configuration for protocol.
func (e *Engine) GetProtocol(tenantDid, protocol string) (*types.ProtocolDefinition, bool, error) {
	p, err := e.tenant(tenantDid)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := p.Get([]byte(protocol))
	if err != nil || !found {
		return nil, false, err
	}
	var def types.ProtocolDefinition
	if err := cbor.Unmarshal(raw, &def); err != nil {
		return nil, false, fmt.Errorf("protocolauth: decode protocol %s: %w", protocol, err)
	}
	return &def, true, nil
}

// ListProtocols returns every protocol configured for a tenant, optionally
// filtered to a single protocol URI (spec.md's supplemented Protocols/Query).
func (e *Engine) ListProtocols(tenantDid, protocol string) ([]types.ProtocolDefinition, error) {
	p, err := e.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	var out []types.ProtocolDefinition
	err = p.ForEach(func(entry kv.Entry) bool {
		if protocol != "" && string(entry.Key) != protocol {
			return true
		}
		var def types.ProtocolDefinition
		if err := cbor.Unmarshal(entry.Value, &def); err == nil {
			out = append(out, def)
		}
		return true
	})
	return out, err
}

// AuthorizeInput bundles the facts Authorize needs to resolve one record
// operation's access decision.
type AuthorizeInput struct {
	TenantDid      string
	Operation      string // "Write" | "Read" | "Query" | "Subscribe" | "Delete"
	Protocol       string
	ProtocolPath   string
	ParentId       string
	Schema         string
	DataFormat     string
	Signer         string
	Recipient      string
	ExistingAuthor string // author of the record already on file; "" for a first write
	Tags           map[string]any
}

// Authorize runs the structural/action resolution procedure of spec.md
// §4.7. A record with no Protocol bypasses it entirely: only the tenant
// owner (Signer == TenantDid) may act on non-protocol-bound records.
func (e *Engine) Authorize(in AuthorizeInput) error {
	if in.Protocol == "" {
		if in.Signer != in.TenantDid {
			return types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationActionNotAllowed)
		}
		return nil
	}
	def, found, err := e.GetProtocol(in.TenantDid, in.Protocol)
	if err != nil {
		return err
	}
	if !found {
		return types.NewError(types.KindNotFound, types.TokenProtocolNotFound)
	}
	ruleSet, typeName, err := resolveRuleSet(def, in.ProtocolPath)
	if err != nil {
		return err
	}
	if protoType, ok := def.Types[typeName]; ok {
		if protoType.Schema != "" && in.Schema != "" && protoType.Schema != in.Schema {
			return types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationInvalidSchema)
		}
		if len(protoType.DataFormats) > 0 && in.DataFormat != "" && !containsStr(protoType.DataFormats, in.DataFormat) {
			return types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationIncorrectDataFormat)
		}
	}
	actualPath, err := e.actualProtocolPath(in.TenantDid, in.ParentId, typeName)
	if err != nil {
		return err
	}
	if actualPath != in.ProtocolPath {
		return types.NewError(types.KindIntegrity, types.TokenProtocolAuthorizationIncorrectProtocolPath)
	}
	ancestors, err := e.ancestorRecipients(in.TenantDid, in.ParentId)
	if err != nil {
		return err
	}
	allowed, err := e.actionAllowed(in.TenantDid, ruleSet, in.Protocol, in.Operation, in.Signer, in.TenantDid, in.Recipient, in.ExistingAuthor, ancestors)
	if err != nil {
		return err
	}
	if !allowed {
		return types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationActionNotAllowed)
	}
	if ruleSet.Tags != nil {
		if err := tagschema.Validate(ruleSet.Tags, in.Tags, in.Protocol+"/"+in.ProtocolPath); err != nil {
			return err
		}
	}
	return nil
}

// CheckAuthorMismatch enforces the immutable-author rule (spec.md §4.7): a
// subsequent write's logical author must equal the record's existing
// author.
func CheckAuthorMismatch(existingAuthor, logicalAuthor string) error {
	if existingAuthor != "" && existingAuthor != logicalAuthor {
		return types.NewError(types.KindAuthentication, types.TokenAuthorMismatch)
	}
	return nil
}

// ComputeContextId returns the deterministic contextId for a record with
// the given parentId (spec.md §3): the parent's contextId with recordId
// appended, or just recordId at the tree root.
func (e *Engine) ComputeContextId(tenantDid, parentId, recordId string) (string, error) {
	if parentId == "" {
		return recordId, nil
	}
	st, err := e.records.State(tenantDid, parentId)
	if err != nil {
		return "", err
	}
	if st.InitialWrite == nil {
		return "", types.NewError(types.KindNotFound, "protocolauth: parent record not found")
	}
	parent := st.InitialWrite.Descriptor.(types.RecordsWriteDescriptor)
	return parent.ContextId + "/" + recordId, nil
}

func (e *Engine) actualProtocolPath(tenantDid, parentId, typeName string) (string, error) {
	if parentId == "" {
		return typeName, nil
	}
	st, err := e.records.State(tenantDid, parentId)
	if err != nil {
		return "", err
	}
	if st.InitialWrite == nil {
		return "", types.NewError(types.KindNotFound, "protocolauth: parent record not found")
	}
	parent := st.InitialWrite.Descriptor.(types.RecordsWriteDescriptor)
	return parent.ProtocolPath + "/" + typeName, nil
}

func (e *Engine) ancestorRecipients(tenantDid, parentId string) (map[string]string, error) {
	out := map[string]string{}
	cur := parentId
	for cur != "" {
		st, err := e.records.State(tenantDid, cur)
		if err != nil {
			return nil, err
		}
		if st.InitialWrite == nil {
			break
		}
		w := st.InitialWrite.Descriptor.(types.RecordsWriteDescriptor)
		out[w.ProtocolPath] = w.Recipient
		cur = w.ParentId
	}
	return out, nil
}

func resolveRuleSet(def *types.ProtocolDefinition, protocolPath string) (*types.RuleSet, string, error) {
	segments := strings.Split(protocolPath, "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, "", types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationMissingRuleSet)
	}
	cur, ok := def.Structure[segments[0]]
	if !ok || cur == nil {
		return nil, "", types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationMissingRuleSet)
	}
	for _, seg := range segments[1:] {
		next, ok := cur.Children[seg]
		if !ok || next == nil {
			return nil, "", types.NewError(types.KindAuthorization, types.TokenProtocolAuthorizationMissingRuleSet)
		}
		cur = next
	}
	return cur, segments[len(segments)-1], nil
}

func (e *Engine) actionAllowed(tenantDid string, rs *types.RuleSet, protocol, operation, signer, owner, recipient, existingAuthor string, ancestors map[string]string) (bool, error) {
	for _, rule := range rs.Actions {
		if !containsStr(rule.Can, operation) {
			continue
		}
		switch {
		case rule.Who == "anyone":
			return true, nil
		case rule.Who == "author":
			if existingAuthor != "" && signer == existingAuthor {
				return true, nil
			}
		case rule.Who == "recipient":
			if rule.Of != "" {
				if anchor, ok := ancestors[rule.Of]; ok && signer == anchor {
					return true, nil
				}
			} else if signer == recipient {
				return true, nil
			}
		case strings.HasPrefix(rule.Who, "role:"):
			rolePath := strings.TrimPrefix(rule.Who, "role:")
			held, err := e.holdsRole(tenantDid, protocol, rolePath, signer)
			if err != nil {
				return false, err
			}
			if held {
				return true, nil
			}
		}
	}
	return signer == owner, nil
}

func (e *Engine) holdsRole(tenantDid, protocol, rolePath, signer string) (bool, error) {
	matches, err := e.messages.Query(tenantDid, []map[string]filter.Condition{{
		"protocol":     filter.Eq(protocol),
		"protocolPath": filter.Eq(rolePath),
		"recipient":    filter.Eq(signer),
	}})
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		w, ok := m.Descriptor.(types.RecordsWriteDescriptor)
		if !ok {
			continue
		}
		if _, err := e.records.Read(tenantDid, w.RecordId); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// ValidateDelegatedGrant runs the delegated-grant chain checks of spec.md
// §4.7. grantorDid is the signer of the grant message itself, already
// verified by the caller the same way any inbound message is verified.
// Returns the logical author (grantorDid) the caller should record as the
// message's author.
func (e *Engine) ValidateDelegatedGrant(tenantDid, grantorDid string, msg *types.Message, operation, protocol string, messageTimestamp time.Time) (string, error) {
	auth := msg.Authorization
	if auth == nil || auth.AuthorDelegatedGrant == nil {
		return "", fmt.Errorf("protocolauth: no delegated grant on message")
	}
	if auth.DelegatedGrantId == "" {
		return "", types.NewError(types.KindIntegrity, types.TokenDelegatedGrantAndIdExistenceMismatch)
	}
	dg := auth.AuthorDelegatedGrant
	grantDesc, ok := dg.Message.Descriptor.(types.PermissionsGrantDescriptor)
	if !ok {
		return "", types.NewError(types.KindAuthentication, types.TokenDelegatedGrantNotADelegatedGrant)
	}
	if !grantDesc.Delegated {
		return "", types.NewError(types.KindAuthentication, types.TokenDelegatedGrantNotADelegatedGrant)
	}
	grantCid := dg.Cid
	if grantCid == "" {
		computed, err := dwncid.MessageCid(dg.Message)
		if err != nil {
			return "", err
		}
		grantCid = computed
	}
	if grantCid != auth.DelegatedGrantId {
		return "", types.NewError(types.KindIntegrity, types.TokenDelegatedGrantCidMismatch)
	}
	signer := msg.Authorization.Signatures[0].KeyId
	if grantDesc.GrantedTo != "" && signer != "" && !strings.HasPrefix(signer, grantDesc.GrantedTo) {
		if grantDesc.GrantedTo != signer {
			return "", types.NewError(types.KindAuthentication, types.TokenDelegatedGrantGrantedToAndOwnerSignatureMismatch)
		}
	}
	// spec.md §4.7 ("Scope {interface, method, protocol} must cover the
	// operation") and its §7 token table (…ScopeProtocolMismatch,
	// …QueryOrSubscribeProtocolScopeMismatch, …DeleteProtocolScopeMismatch)
	// define only one token per method family for the whole scope check —
	// there is no separate token for a method-only mismatch. A grant whose
	// Scope.Method disagrees with the operation fails the same scope check
	// as one whose Scope.Protocol disagrees, so both branches below
	// intentionally report scopeMismatchToken.
	scopeMismatchToken := types.TokenGrantAuthorizationScopeProtocolMismatch
	switch operation {
	case "Query", "Subscribe":
		scopeMismatchToken = types.TokenGrantAuthorizationQueryOrSubscribeProtocolMismatch
	case "Delete":
		scopeMismatchToken = types.TokenGrantAuthorizationDeleteProtocolMismatch
	}
	if string(grantDesc.Scope.Method) != operation {
		return "", types.NewError(types.KindAuthentication, scopeMismatchToken)
	}
	if grantDesc.Scope.Protocol != "" && grantDesc.Scope.Protocol != protocol {
		return "", types.NewError(types.KindAuthentication, scopeMismatchToken)
	}
	if !grantDesc.DateExpires.After(messageTimestamp) {
		return "", types.NewError(types.KindAuthentication, types.TokenGrantAuthorizationGrantExpired)
	}
	revoked, err := e.isGrantRevoked(tenantDid, grantCid, messageTimestamp)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", types.NewError(types.KindAuthentication, types.TokenGrantAuthorizationGrantRevoked)
	}
	return grantorDid, nil
}

func (e *Engine) isGrantRevoked(tenantDid, grantCid string, messageTimestamp time.Time) (bool, error) {
	matches, err := e.messages.Query(tenantDid, []map[string]filter.Condition{{
		"grantId": filter.Eq(grantCid),
	}})
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if !m.Descriptor.Base().MessageTimestamp.After(messageTimestamp) {
			return true, nil
		}
	}
	return false, nil
}

func containsStr(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
