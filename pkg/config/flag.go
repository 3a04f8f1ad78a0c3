package config

// Flag is a flag.Value that loads the configuration file the flag points to.
type Flag struct {
	File   string
	Config *Configuration
	IsSet  bool
}

func (f *Flag) Set(path string) error {
	cfg, err := FromFile(path)
	if err != nil {
		return err
	}

	f.File = path
	*f.Config = cfg
	f.IsSet = true

	return nil
}

func (f *Flag) String() string {
	return f.File
}
