package models

// Table names a persisted collection.
type Table string

const (
	TableTransactions Table = "transactions"
	TableCustomers    Table = "customers"
	TableSuppliers    Table = "suppliers"
	TableReminders    Table = "reminders"

	TableSyncQueue Table = "sync_queue"
	TableMetadata  Table = "metadata"
	TableConflicts Table = "conflict_log"
)

// IsDomain reports whether t holds records.
func (t Table) IsDomain() bool {
	_, ok := schemas[t]
	return ok
}

// Valid reports whether t names any table of the local store.
func (t Table) Valid() bool {
	switch t {
	case TableSyncQueue, TableMetadata, TableConflicts:
		return true
	}
	return t.IsDomain()
}

// Sensitivity classifies how a field is reconciled on conflict.
type Sensitivity int

const (
	// Ordinary fields resolve by last-write-wins on updated_at.
	Ordinary Sensitivity = iota
	// Financial fields keep the server value and always require confirmation.
	Financial
)

func (s Sensitivity) String() string {
	if s == Financial {
		return "financial"
	}
	return "ordinary"
}

// Field is a declared domain field.
type Field struct {
	Name        string
	Sensitivity Sensitivity
}

// Schema declares the compared fields and the secondary indexes of a table.
type Schema struct {
	Table   Table
	Fields  []Field
	Indexes []string
}

// HasIndex reports whether attribute is a declared index.
func (s Schema) HasIndex(attribute string) bool {
	for _, idx := range s.Indexes {
		if idx == attribute {
			return true
		}
	}
	return false
}

const (
	IndexPartyID    = "party_id"
	IndexDate       = "date"
	IndexDueDate    = "due_date"
	IndexName       = "name"
	IndexSyncStatus = "sync_status"
)

var partyFields = []Field{
	{Name: "name"},
	{Name: "phone"},
	{Name: "email"},
	{Name: "address"},
	{Name: "notes"},
	{Name: "outstanding_balance", Sensitivity: Financial},
}

var schemas = map[Table]Schema{
	TableTransactions: {
		Table: TableTransactions,
		Fields: []Field{
			{Name: "type"},
			{Name: "party_id"},
			{Name: "amount", Sensitivity: Financial},
			{Name: "date"},
			{Name: "description"},
			{Name: "category"},
		},
		Indexes: []string{IndexPartyID, IndexDate, IndexSyncStatus},
	},
	TableCustomers: {
		Table:   TableCustomers,
		Fields:  partyFields,
		Indexes: []string{IndexName, IndexSyncStatus},
	},
	TableSuppliers: {
		Table:   TableSuppliers,
		Fields:  partyFields,
		Indexes: []string{IndexName, IndexSyncStatus},
	},
	TableReminders: {
		Table: TableReminders,
		Fields: []Field{
			{Name: "party_id"},
			{Name: "party_type"},
			{Name: "amount", Sensitivity: Financial},
			{Name: "due_date"},
			{Name: "description"},
			{Name: "is_completed"},
		},
		Indexes: []string{IndexPartyID, IndexDueDate, IndexSyncStatus},
	},
}

// SchemaFor returns the declared schema of a domain table.
func SchemaFor(t Table) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// DomainTables lists the record tables in a fixed order.
func DomainTables() []Table {
	return []Table{TableTransactions, TableCustomers, TableSuppliers, TableReminders}
}

// IndexColumns lists every index column present on the domain tables.
func IndexColumns() []string {
	return []string{IndexPartyID, IndexDate, IndexDueDate, IndexName}
}
