package store

import "time"

// note is a test entity exercising all three capabilities.
type note struct {
	ID        string
	Owner     string
	Body      string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (n *note) EntityID() string             { return n.ID }
func (n *note) SetEntityID(id string)        { n.ID = id }
func (n *note) OwnerActor() string           { return n.Owner }
func (n *note) SetOwnerActor(actor string)   { n.Owner = actor }
func (n *note) CreatedTime() time.Time       { return n.CreatedAt }
func (n *note) SetCreatedTime(t time.Time)   { n.CreatedAt = t }
func (n *note) SetUpdatedTime(t time.Time)   { n.UpdatedAt = t }
func (n *note) IsDeletedFlag() bool          { return n.IsDeleted }
func (n *note) SetDeletedFlag(deleted bool)  { n.IsDeleted = deleted }

func noteDescriptor() *Descriptor {
	return &Descriptor{
		Table:   "notes",
		Columns: []string{"id", "owner", "body", "is_deleted", "created_at", "updated_at"},
		Caps:    CapTrackable | CapOwnable | CapSoftDeletable,
		New:     func() Entity { return &note{} },
		Values: func(e Entity) []any {
			n := e.(*note)
			return []any{n.ID, n.Owner, n.Body, n.IsDeleted, n.CreatedAt, n.UpdatedAt}
		},
		Fields: func(e Entity) []any {
			n := e.(*note)
			return []any{&n.ID, &n.Owner, &n.Body, &n.IsDeleted, &n.CreatedAt, &n.UpdatedAt}
		},
	}
}

// tag is a bare test entity with no capabilities.
type tag struct {
	ID    string
	Label string
}

func (g *tag) EntityID() string      { return g.ID }
func (g *tag) SetEntityID(id string) { g.ID = id }

func tagDescriptor() *Descriptor {
	return &Descriptor{
		Table:   "tags",
		Columns: []string{"id", "label"},
		New:     func() Entity { return &tag{} },
		Values: func(e Entity) []any {
			g := e.(*tag)
			return []any{g.ID, g.Label}
		},
		Fields: func(e Entity) []any {
			g := e.(*tag)
			return []any{&g.ID, &g.Label}
		},
	}
}
