package enums

// AuditAction names what an audit log row records.
type AuditAction string

const (
	AuditActionCreate         AuditAction = "Create"
	AuditActionUpdate         AuditAction = "Update"
	AuditActionUpdateStatus   AuditAction = "Update Status"
	AuditActionDelete         AuditAction = "Delete"
	AuditActionCashAdjustment AuditAction = "Cash Adjustment"
	AuditActionAttachReceipt  AuditAction = "Attach Receipt"
	AuditActionRenameReceipt  AuditAction = "Rename Receipt"
	AuditActionDeleteReceipt  AuditAction = "Delete Receipt"
	AuditActionUpdateRole     AuditAction = "Update Role"
)

func (a AuditAction) String() string {
	return string(a)
}

// AuditVisibility is the soft-delete flag stored in the last audit column.
type AuditVisibility string

const (
	AuditVisible AuditVisibility = "1"
	AuditCleared AuditVisibility = "0"
)
