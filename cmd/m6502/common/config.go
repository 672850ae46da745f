package common

import (
    "encoding/json"
    "log"
    "os"
    "path/filepath"
)

const CurrentVersion = 1

type ConfigData struct {
    Version int `json:"version,omitempty"`

    /* window size multiple for the display front end */
    Scale int `json:"scale,omitempty"`

    /* cpu steps executed per display frame */
    StepsPerFrame int `json:"steps-per-frame,omitempty"`

    /* emit a trace line for every instruction */
    Trace bool `json:"trace,omitempty"`
}

/* make the directory where the config file lives, which is
 * ~/.config/gomos6502 on linux
 */
func GetOrCreateConfigDir() (string, error) {
    configDir, err := os.UserConfigDir()
    if err != nil {
        return "", err
    }
    configPath := filepath.Join(configDir, "gomos6502")
    err = os.MkdirAll(configPath, 0755)
    if err != nil {
        return "", err
    }

    return configPath, nil
}

func DefaultConfigData() ConfigData {
    return ConfigData{
        Version: CurrentVersion,
        Scale: 10,
        StepsPerFrame: 100,
    }
}

func getConfigPath() (string, error) {
    dir, err := GetOrCreateConfigDir()
    if err != nil {
        return "", err
    }
    return filepath.Join(dir, "config.json"), nil
}

/* missing or unreadable config files are not an error, the defaults
 * apply and the file is written on the next save
 */
func LoadConfigData() ConfigData {
    out := DefaultConfigData()

    path, err := getConfigPath()
    if err != nil {
        return out
    }

    file, err := os.Open(path)
    if err != nil {
        return out
    }
    defer file.Close()

    decoder := json.NewDecoder(file)
    err = decoder.Decode(&out)
    if err != nil {
        log.Printf("Warning: could not parse %v: %v", path, err)
        return DefaultConfigData()
    }

    if out.Scale <= 0 {
        out.Scale = DefaultConfigData().Scale
    }
    if out.StepsPerFrame <= 0 {
        out.StepsPerFrame = DefaultConfigData().StepsPerFrame
    }
    out.Version = CurrentVersion

    return out
}

func SaveConfigData(data ConfigData) error {
    path, err := getConfigPath()
    if err != nil {
        return err
    }

    file, err := os.Create(path)
    if err != nil {
        return err
    }
    defer file.Close()

    encoder := json.NewEncoder(file)
    encoder.SetIndent("", "  ")
    return encoder.Encode(data)
}
