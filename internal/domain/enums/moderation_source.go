package enums

type ModerationSource string

const (
	ModerationSourceAI            ModerationSource = "AI"
	ModerationSourceAdminOverride ModerationSource = "admin_override"
)
