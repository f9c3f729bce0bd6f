package shared

const (
	SQLITE_STORAGE = "sqlite"
	MEMORY_STORAGE = "memory"
)

type ServerConfig struct {
	Sqlite  SqliteConfig  `mapstructure:"sqlite" validate:"required"`
	Kinfolk KinfolkConfig `mapstructure:"kinfolk" validate:"required"`
	Google  GoogleConfig  `mapstructure:"google"`
	Twilio  TwilioConfig  `mapstructure:"twilio"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type KinfolkConfig struct {
	PrivateKeyPem string         `mapstructure:"privateKeyPem" validate:"required"`
	Storage       string         `mapstructure:"storage" validate:"omitempty,oneof=sqlite memory"`
	DataDir       string         `mapstructure:"dataDir"`
	TokenTTLHours int            `mapstructure:"tokenTTLHours" validate:"omitempty,min=1"`
	Cron          CronConfig     `mapstructure:"cron" validate:"required"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	Tree          TreeConfig     `mapstructure:"tree"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type CronConfig struct {
	TimeZone      string `mapstructure:"timeZone" validate:"required"`
	AuditSchedule string `mapstructure:"auditSchedule"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type TreeConfig struct {
	DefaultDepth int `mapstructure:"defaultDepth" validate:"omitempty,min=1"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
	EnablePhotoUploads        interface{} `mapstructure:"enablePhotoUploads" validate:"omitempty,bool"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken" validate:"required_with=AccountSid"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid" validate:"required_with=AccountSid"`
}
