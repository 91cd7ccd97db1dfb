// Package validation validates configuration structs using
// go-playground/validator struct tags. Field names in messages follow the
// mapstructure tag, so they match the keys users write in config files.
//
//	type Config struct {
//	    CacheDir string `mapstructure:"cache_dir" validate:"required"`
//	    Device   string `mapstructure:"device" validate:"omitempty,device"`
//	}
//	err := validation.Validate(cfg)
//
// Packages add domain tags (such as "device") with RegisterTag.
package validation
