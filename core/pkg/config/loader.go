package config

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const ConfigFileEnvVar = "KEYMANAGER_CONFIG_FILE"
const DefaultConfigFile = "/etc/keymanager/config.yml"

func EncodeStruct[E any](source E) (map[string]interface{}, error) {
	var target map[string]interface{}
	err := mapstructure.Decode(source, &target)
	if err != nil {
		return nil, fmt.Errorf("could not decode struct: %w", err)
	}
	return target, nil
}

func readConfig[E any](configFilePath string, defaults *E) (*E, error) {
	vp := viper.New()
	vp.SetEnvPrefix("KEYMANAGER")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	vp.SetConfigFile(configFilePath)
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error while processing config file: %w", err)
	}

	var config E
	if defaults != nil {
		config = *defaults
	}

	// decoding into a prefilled struct keeps every default the file does not override
	err := vp.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	return &config, nil
}

func LoadConfig[E any](defaults *E) (*E, error) {
	var err error
	var conf *E

	configFileEnv := os.Getenv(ConfigFileEnvVar)
	loadStandardPaths := true

	if configFileEnv != "" {
		loadStandardPaths = false
		log.Infof("loading config file from %s", configFileEnv)
		conf, err = readConfig[E](configFileEnv, defaults)

		if err != nil {
			log.Warnf("failed to load config file specified in ENV '%s' variable. will try to load from standard paths: %s", ConfigFileEnvVar, err)
			loadStandardPaths = true
		}
	} else {
		log.Infof("ENV '%s' variable not set, will try to load from standard paths", ConfigFileEnvVar)
	}

	if loadStandardPaths {
		conf, err = readConfig[E](DefaultConfigFile, defaults)
	}
	if err != nil {
		return nil, err
	}

	return conf, nil
}
