package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	corecontract "github.com/example/guild/internal/core/contract"
	coremail "github.com/example/guild/internal/core/mail"
	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

// ContractServiceImpl implements the ContractService interface.
type ContractServiceImpl struct {
	contracts secondary.ContractStore
	mail      primary.MailService
	log       zerolog.Logger
	now       func() time.Time
	newRootID func() string
}

// NewContractService creates a new ContractService with injected dependencies.
func NewContractService(contracts secondary.ContractStore, mail primary.MailService, log zerolog.Logger) *ContractServiceImpl {
	return &ContractServiceImpl{
		contracts: contracts,
		mail:      mail,
		log:       log,
		now:       time.Now,
		newRootID: newRootContractID,
	}
}

// newRootContractID mints an id for a root contract. Child ids are derived
// from the parent instead.
func newRootContractID() string {
	return "CON-" + strings.ToUpper(uuid.NewString()[:8])
}

// Create persists a new contract and notifies the assignee.
func (s *ContractServiceImpl) Create(ctx context.Context, req primary.CreateContractRequest) (*primary.Contract, error) {
	if req.From == "" || req.To == "" {
		return nil, fmt.Errorf("issuer and assignee are required")
	}

	rec := &secondary.ContractRecord{
		ParentID:  req.ParentID,
		From:      req.From,
		To:        req.To,
		Status:    string(corecontract.InitialStatus()),
		CreatedAt: s.now().UTC(),
		Version:   1,
		Fields:    fieldsToRecord(req.Fields),
	}

	if req.ParentID != "" {
		id, err := s.contracts.CreateChild(ctx, rec)
		if err != nil {
			return nil, err
		}
		rec.ID = id
	} else {
		rec.ID = s.newRootID()
		if err := s.contracts.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create contract: %w", err)
		}
	}

	s.notify(ctx, req.From, req.To, coremail.TypeContract, rec.ID,
		fmt.Sprintf("You have been assigned contract %s.", rec.ID))

	s.log.Info().
		Str("contract_id", rec.ID).
		Str("from", req.From).
		Str("to", req.To).
		Msg("contract created")
	return recordToContract(rec), nil
}

// Transition applies a status change after validating it against the state
// machine, and notifies the counterparty.
func (s *ContractServiceImpl) Transition(ctx context.Context, req primary.TransitionRequest) (*primary.Contract, error) {
	rec, err := s.contracts.GetByID(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}

	// An unknown status name is rejected the same way as an illegal hop, so
	// automated callers always learn which statuses would have been legal.
	from := corecontract.Status(rec.Status)
	to := corecontract.Status(req.NewStatus)
	if !corecontract.Valid(to) || !corecontract.CanTransition(from, to) {
		allowed := corecontract.AllowedNext(from)
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return nil, &fault.TransitionError{
			ContractID: rec.ID,
			From:       rec.Status,
			To:         req.NewStatus,
			Allowed:    names,
		}
	}

	rec.Status = string(to)
	rec.Log = append(rec.Log, secondary.ChangeLogEntry{
		Timestamp:  s.now().UTC(),
		FromStatus: string(from),
		ToStatus:   string(to),
		Note:       req.Note,
	})
	if err := s.contracts.Update(ctx, rec, rec.Version); err != nil {
		return nil, err
	}
	rec.Version++

	// review is the assignee handing work back, so the issuer gets notified;
	// every other transition flows the opposite way.
	recipient := rec.To
	if to == corecontract.StatusReview {
		recipient = rec.From
	}
	sender := rec.From
	if recipient == rec.From {
		sender = rec.To
	}
	s.notify(ctx, sender, recipient, coremail.TypeStatusUpdate, rec.ID,
		fmt.Sprintf("Contract %s moved from %s to %s.", rec.ID, from, to))

	s.log.Info().
		Str("contract_id", rec.ID).
		Str("from_status", string(from)).
		Str("to_status", string(to)).
		Msg("contract transitioned")
	return recordToContract(rec), nil
}

// Get retrieves a contract by id.
func (s *ContractServiceImpl) Get(ctx context.Context, contractID string) (*primary.Contract, error) {
	rec, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return recordToContract(rec), nil
}

// List retrieves contracts, optionally filtered by status.
func (s *ContractServiceImpl) List(ctx context.Context, filterStatus string) ([]*primary.Contract, error) {
	if filterStatus != "" && !corecontract.Valid(corecontract.Status(filterStatus)) {
		return nil, fmt.Errorf("invalid status: %s", filterStatus)
	}
	recs, err := s.contracts.List(ctx, secondary.ContractFilters{Status: filterStatus})
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	out := make([]*primary.Contract, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordToContract(rec))
	}
	return out, nil
}

// ChildrenPassed reports whether every child of parentID has passed.
func (s *ContractServiceImpl) ChildrenPassed(ctx context.Context, parentID string) (bool, error) {
	if _, err := s.contracts.GetByID(ctx, parentID); err != nil {
		return false, err
	}
	children, err := s.contracts.Children(ctx, parentID)
	if err != nil {
		return false, fmt.Errorf("failed to list children: %w", err)
	}
	if len(children) == 0 {
		return false, nil
	}
	for _, c := range children {
		if corecontract.Status(c.Status) != corecontract.StatusPassed {
			return false, nil
		}
	}
	return true, nil
}

// notify delivers a contract-related message on a best-effort basis. Mail
// failure never rolls back the contract mutation that triggered it.
func (s *ContractServiceImpl) notify(ctx context.Context, from, to string, typ coremail.Type, contractID, body string) {
	_, err := s.mail.Send(ctx, primary.SendRequest{
		From:     from,
		To:       to,
		Type:     string(typ),
		Priority: string(coremail.PriorityHigh),
		Subject:  contractID,
		Body:     body,
	})
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("contract_id", contractID).
			Str("recipient", to).
			Msg("contract notification not delivered")
	}
}

func fieldsToRecord(fields []primary.ContractField) []secondary.Field {
	out := make([]secondary.Field, len(fields))
	for i, f := range fields {
		out[i] = secondary.Field{Key: f.Key, Value: f.Value}
	}
	return out
}

func recordToContract(rec *secondary.ContractRecord) *primary.Contract {
	fields := make([]primary.ContractField, len(rec.Fields))
	for i, f := range rec.Fields {
		fields[i] = primary.ContractField{Key: f.Key, Value: f.Value}
	}
	log := make([]primary.ChangeLog, len(rec.Log))
	for i, e := range rec.Log {
		log[i] = primary.ChangeLog{
			Timestamp:  e.Timestamp,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Note:       e.Note,
		}
	}
	return &primary.Contract{
		ID:        rec.ID,
		ParentID:  rec.ParentID,
		From:      rec.From,
		To:        rec.To,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		Version:   rec.Version,
		Fields:    fields,
		Log:       log,
	}
}
