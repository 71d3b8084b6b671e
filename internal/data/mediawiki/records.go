package mediawiki

// Fixed lookup identifiers seeded before ingestion.
const (
	MainRoleID      = 1
	MainRoleName    = "main"
	WikitextModelID = 1
	WikitextModel   = "wikitext"
)

// PageRow is a row of the page table. page_id comes from the dump.
type PageRow struct {
	ID         int64   `gorm:"column:page_id;primaryKey;autoIncrement:false"`
	Namespace  int     `gorm:"column:page_namespace;not null;uniqueIndex:idx_page_name_title,priority:1"`
	Title      string  `gorm:"column:page_title;size:255;not null;uniqueIndex:idx_page_name_title,priority:2"`
	IsRedirect bool    `gorm:"column:page_is_redirect;not null"`
	Random     float64 `gorm:"column:page_random;not null"`
	Touched    int64   `gorm:"column:page_touched;not null"`
	Latest     int64   `gorm:"column:page_latest;not null"`
	Len        int64   `gorm:"column:page_len;not null"`
}

// TableName defines the table name for the PageRow model.
func (PageRow) TableName() string {
	return "page"
}

// ActorRow is a row of the actor table, keyed by the contributor id.
type ActorRow struct {
	ID   int64  `gorm:"column:actor_id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:actor_name;size:255;not null"`
}

// TableName defines the table name for the ActorRow model.
func (ActorRow) TableName() string {
	return "actor"
}

// RevisionRow is a row of the revision table.
type RevisionRow struct {
	ID        int64  `gorm:"column:rev_id;primaryKey;autoIncrement:false"`
	PageID    int64  `gorm:"column:rev_page;not null;index:idx_revision_page"`
	CommentID int64  `gorm:"column:rev_comment_id;not null"`
	ActorID   int64  `gorm:"column:rev_actor;not null"`
	Timestamp int64  `gorm:"column:rev_timestamp;not null"`
	MinorEdit bool   `gorm:"column:rev_minor_edit;not null"`
	ParentID  *int64 `gorm:"column:rev_parent_id"`
	SHA1      string `gorm:"column:rev_sha1;size:32;not null"`
}

// TableName defines the table name for the RevisionRow model.
func (RevisionRow) TableName() string {
	return "revision"
}

// TextRow is a row of the text table. old_id is assigned by the store.
type TextRow struct {
	ID    int64  `gorm:"column:old_id;primaryKey;autoIncrement"`
	Text  string `gorm:"column:old_text;type:longtext;not null"`
	Flags string `gorm:"column:old_flags;size:255;not null"`
}

// TableName defines the table name for the TextRow model.
func (TextRow) TableName() string {
	return "text"
}

// ContentRow is a row of the content table. content_id is assigned by the store.
type ContentRow struct {
	ID      int64  `gorm:"column:content_id;primaryKey;autoIncrement"`
	Size    int64  `gorm:"column:content_size;not null"`
	SHA1    string `gorm:"column:content_sha1;size:32;not null"`
	Model   int    `gorm:"column:content_model;not null"`
	Address string `gorm:"column:content_address;size:255;not null"`
}

// TableName defines the table name for the ContentRow model.
func (ContentRow) TableName() string {
	return "content"
}

// SlotRow links a revision to its content under a role.
type SlotRow struct {
	RevisionID int64 `gorm:"column:slot_revision_id;primaryKey;autoIncrement:false"`
	RoleID     int   `gorm:"column:slot_role_id;primaryKey;autoIncrement:false"`
	ContentID  int64 `gorm:"column:slot_content_id;not null"`
	Origin     int64 `gorm:"column:slot_origin;not null"`
}

// TableName defines the table name for the SlotRow model.
func (SlotRow) TableName() string {
	return "slots"
}

// SlotRoleRow is a static slot_roles lookup entry.
type SlotRoleRow struct {
	ID   int    `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:role_name;size:64;not null;uniqueIndex:idx_slot_roles_name"`
}

func (SlotRoleRow) TableName() string {
	return "slot_roles"
}

// ContentModelRow is a static content_models lookup entry.
type ContentModelRow struct {
	ID   int    `gorm:"column:model_id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:model_name;size:64;not null;uniqueIndex:idx_content_models_name"`
}

func (ContentModelRow) TableName() string {
	return "content_models"
}

// Models lists every table model in creation order.
func Models() []any {
	return []any{
		&PageRow{},
		&ActorRow{},
		&RevisionRow{},
		&TextRow{},
		&ContentRow{},
		&SlotRow{},
		&SlotRoleRow{},
		&ContentModelRow{},
	}
}
