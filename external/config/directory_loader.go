package config

import (
	"fmt"
	"os"

	"github.com/vehiclecare/voicebook/internal/booking"
	"gopkg.in/yaml.v3"
)

type directoryFile struct {
	ServiceCenters []directoryEntry `yaml:"service_centers"`
}

type directoryEntry struct {
	Name    string `yaml:"name"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
	Hours   string `yaml:"hours"`
}

// LoadDirectory reads the service-center directory from a YAML file. The
// directory is immutable after this call.
func LoadDirectory(path string) (booking.Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return booking.Directory{}, fmt.Errorf("read service directory: %w", err)
	}
	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return booking.Directory{}, fmt.Errorf("parse service directory: %w", err)
	}
	if len(file.ServiceCenters) == 0 {
		return booking.Directory{}, fmt.Errorf("service directory %s contains no centers", path)
	}
	centers := make([]booking.ServiceCenter, 0, len(file.ServiceCenters))
	for _, e := range file.ServiceCenters {
		centers = append(centers, booking.ServiceCenter{
			Name:    e.Name,
			Phone:   e.Phone,
			Address: e.Address,
			Hours:   e.Hours,
		})
	}
	dir := booking.NewDirectory(centers)
	if dir.Len() == 0 {
		return booking.Directory{}, fmt.Errorf("service directory %s contains no usable centers", path)
	}
	return dir, nil
}
