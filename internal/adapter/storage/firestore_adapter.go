package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

// FirestoreAdapter is the authoritative ledger over Firestore. Components are
// single documents carrying their stock entries in a `locations` array;
// projects carry their BOM inline; transactions are one document each.
// Multi-entry stock writes run inside one Firestore transaction that re-reads
// every touched document and verifies the expected quantities before writing.
type FirestoreAdapter struct {
	client *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{client: client}
}

func (f *FirestoreAdapter) components() *firestore.CollectionRef {
	return f.client.Collection("components")
}

func (f *FirestoreAdapter) projects() *firestore.CollectionRef {
	return f.client.Collection("projects")
}

func (f *FirestoreAdapter) transactions() *firestore.CollectionRef {
	return f.client.Collection("transactions")
}

type componentDoc struct {
	Name         string        `firestore:"name"`
	Category     string        `firestore:"category"`
	Manufacturer string        `firestore:"manufacturer"`
	PartNumber   string        `firestore:"partNumber"`
	UnitPrice    float64       `firestore:"unitPrice"`
	Locations    []locationDoc `firestore:"locations"`
}

type locationDoc struct {
	ID    string `firestore:"id"`
	Name  string `firestore:"name"`
	Stock int    `firestore:"stock"`
}

type projectDoc struct {
	Name string       `firestore:"name"`
	BOM  []bomLineDoc `firestore:"bom"`
}

type bomLineDoc struct {
	ComponentID string `firestore:"componentId"`
	LocationID  string `firestore:"locationId"`
	Quantity    int    `firestore:"quantity"`
}

type transactionDoc struct {
	Type      string    `firestore:"type"`
	Timestamp time.Time `firestore:"timestamp"`
	Details   []string  `firestore:"details"`
}

func (f *FirestoreAdapter) GetComponent(ctx context.Context, componentID string) (*domain.Component, error) {
	snap, err := f.components().Doc(componentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get component: %w", err)
	}

	var doc componentDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode component: %w", err)
	}
	return docToComponent(snap.Ref.ID, doc), nil
}

func (f *FirestoreAdapter) ApplyStockWrites(ctx context.Context, writes []domain.StockWrite) error {
	if len(writes) == 0 {
		return nil
	}
	for _, w := range writes {
		if w.New < 0 {
			return fmt.Errorf("stock write for %s at %s would go negative", w.ComponentID, w.LocationID)
		}
	}

	// group by component so each document is read and rewritten once
	byComponent := make(map[string][]domain.StockWrite)
	var order []string
	for _, w := range writes {
		if _, seen := byComponent[w.ComponentID]; !seen {
			order = append(order, w.ComponentID)
		}
		byComponent[w.ComponentID] = append(byComponent[w.ComponentID], w)
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type pending struct {
			ref *firestore.DocumentRef
			doc componentDoc
		}
		updates := make([]pending, 0, len(order))

		for _, componentID := range order {
			ref := f.components().Doc(componentID)
			snap, err := tx.Get(ref)
			if status.Code(err) == codes.NotFound {
				return port.ErrNotFound
			}
			if err != nil {
				return err
			}

			var doc componentDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode component %s: %w", componentID, err)
			}

			for _, w := range byComponent[componentID] {
				idx := -1
				for i, l := range doc.Locations {
					if l.ID == w.LocationID {
						idx = i
						break
					}
				}
				if idx < 0 {
					return port.ErrNotFound
				}
				if doc.Locations[idx].Stock != w.Expected {
					return port.ErrConflict
				}
				doc.Locations[idx].Stock = w.New
			}
			updates = append(updates, pending{ref: ref, doc: doc})
		}

		for _, u := range updates {
			if err := tx.Set(u.ref, map[string]interface{}{"locations": u.doc.Locations}, firestore.MergeAll); err != nil {
				return err
			}
		}
		return nil
	})
	if status.Code(err) == codes.Aborted {
		return port.ErrConflict
	}
	return err
}

func (f *FirestoreAdapter) CreateComponent(ctx context.Context, c domain.Component) error {
	var ref *firestore.DocumentRef
	if c.ID == "" {
		ref = f.components().NewDoc()
	} else {
		ref = f.components().Doc(c.ID)
	}

	if _, err := ref.Create(ctx, componentToDoc(c)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return port.ErrConflict
		}
		return fmt.Errorf("create component: %w", err)
	}
	return nil
}

func (f *FirestoreAdapter) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	snap, err := f.projects().Doc(projectID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	var doc projectDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}

	p := &domain.Project{ID: snap.Ref.ID, Name: doc.Name}
	for _, b := range doc.BOM {
		p.BOM = append(p.BOM, domain.BOMLine{
			ComponentID:  b.ComponentID,
			LocationID:   b.LocationID,
			UnitQuantity: b.Quantity,
		})
	}
	return p, nil
}

func (f *FirestoreAdapter) Append(ctx context.Context, rec domain.TransactionRecord) error {
	_, err := f.transactions().Doc(rec.ID).Create(ctx, transactionDoc{
		Type:      string(rec.Type),
		Timestamp: rec.Timestamp,
		Details:   rec.Details,
	})
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (f *FirestoreAdapter) List(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	iter := f.transactions().OrderBy("timestamp", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var records []domain.TransactionRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}

		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		records = append(records, domain.TransactionRecord{
			ID:        snap.Ref.ID,
			Type:      domain.TransactionType(doc.Type),
			Timestamp: doc.Timestamp,
			Details:   doc.Details,
		})
	}
	return records, nil
}

func docToComponent(id string, doc componentDoc) *domain.Component {
	c := &domain.Component{
		ID:           id,
		Name:         doc.Name,
		Category:     doc.Category,
		Manufacturer: doc.Manufacturer,
		PartNumber:   doc.PartNumber,
		UnitPrice:    doc.UnitPrice,
	}
	for _, l := range doc.Locations {
		c.Locations = append(c.Locations, domain.LocationStock{
			LocationID:   l.ID,
			LocationName: l.Name,
			Quantity:     l.Stock,
		})
	}
	return c
}

func componentToDoc(c domain.Component) componentDoc {
	doc := componentDoc{
		Name:         c.Name,
		Category:     c.Category,
		Manufacturer: c.Manufacturer,
		PartNumber:   c.PartNumber,
		UnitPrice:    c.UnitPrice,
	}
	for _, l := range c.Locations {
		doc.Locations = append(doc.Locations, locationDoc{
			ID:    l.LocationID,
			Name:  l.LocationName,
			Stock: l.Quantity,
		})
	}
	return doc
}
