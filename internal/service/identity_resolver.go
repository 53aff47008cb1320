package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// ScanCode is a decoded QR payload. Exactly one of Matricule or ID is set.
type ScanCode struct {
	Matricule string
	ID        string
}

func (c ScanCode) String() string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	return c.Matricule
}

// ParseScanPayload accepts a plain matricule or a structured {"id": ...} payload.
func ParseScanPayload(raw string) (ScanCode, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return ScanCode{}, invalidField("payload", "scan payload is empty")
	}

	if !strings.HasPrefix(payload, "{") {
		return ScanCode{Matricule: payload}, nil
	}

	var structured struct {
		ID json.RawMessage `json:"id"`
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(payload)))
	decoder.UseNumber()
	if err := decoder.Decode(&structured); err != nil || len(structured.ID) == 0 {
		return ScanCode{}, invalidField("payload", "structured payload must carry an id")
	}

	var id string
	if err := json.Unmarshal(structured.ID, &id); err != nil {
		var number json.Number
		if err := json.Unmarshal(structured.ID, &number); err != nil {
			return ScanCode{}, invalidField("payload", "id must be a string or a number")
		}
		id = number.String()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return ScanCode{}, invalidField("payload", "id is empty")
	}
	return ScanCode{ID: id}, nil
}

// IdentityResolver maps a scanned code to a directory actor.
type IdentityResolver interface {
	Resolve(ctx context.Context, code ScanCode) (models.Actor, error)
}

type directoryResolver struct {
	actors repository.ActorRepository
}

// NewDirectoryResolver resolves codes against the actor directory table.
func NewDirectoryResolver(actors repository.ActorRepository) IdentityResolver {
	return &directoryResolver{actors: actors}
}

func (r *directoryResolver) Resolve(ctx context.Context, code ScanCode) (models.Actor, error) {
	if code.ID != "" {
		if numeric, err := strconv.ParseUint(code.ID, 10, 64); err == nil {
			actor, err := r.actors.FindByID(ctx, uint(numeric))
			if err == nil {
				return actor, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Actor{}, fmt.Errorf("resolve actor by id: %w", err)
			}
		}
		return r.byMatricule(ctx, code.ID)
	}
	return r.byMatricule(ctx, code.Matricule)
}

func (r *directoryResolver) byMatricule(ctx context.Context, matricule string) (models.Actor, error) {
	actor, err := r.actors.FindByMatricule(ctx, matricule)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Actor{}, ErrActorNotFound
		}
		return models.Actor{}, fmt.Errorf("resolve actor by matricule: %w", err)
	}
	return actor, nil
}
