package config

// ConfigBackend is where persisted settings live: the defaults database on
// macOS, a JSON file under $XDG_CONFIG_HOME elsewhere. ok is false when the
// key has never been set. Bool and float keys go through the string methods.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
