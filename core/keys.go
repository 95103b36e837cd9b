package core

import "strings"

// ServiceKey identifies an auth strategy (for example "github" or "google").
type ServiceKey string

// ContainerKey identifies a settings target. One ServiceKey may back several
// container keys; the google provider backs gmail, google_calendar, and the
// other workspace products.
type ContainerKey string

const (
	ServiceAsana   ServiceKey = "asana"
	ServiceGitHub  ServiceKey = "github"
	ServiceGoogle  ServiceKey = "google"
	ServiceHubSpot ServiceKey = "hubspot"
	ServiceNotion  ServiceKey = "notion"
	ServiceSlack   ServiceKey = "slack"
)

const (
	ContainerAsana          ContainerKey = "asana"
	ContainerGitHub         ContainerKey = "github"
	ContainerGmail          ContainerKey = "gmail"
	ContainerGoogleCalendar ContainerKey = "google_calendar"
	ContainerGoogleDocs     ContainerKey = "google_docs"
	ContainerGoogleDrive    ContainerKey = "google_drive"
	ContainerGoogleSheets   ContainerKey = "google_sheets"
	ContainerHubSpot        ContainerKey = "hubspot"
	ContainerNotion         ContainerKey = "notion"
	ContainerSlack          ContainerKey = "slack"
)

// NormalizeName lower-cases a caller supplied identifier and maps hyphens to
// underscores. The manager applies it to provider names, allow-lists, and
// manual credential keys.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

func (k ServiceKey) String() string { return string(k) }

func (k ContainerKey) String() string { return string(k) }

// Normalize returns the canonical form of k.
func (k ServiceKey) Normalize() ServiceKey { return ServiceKey(NormalizeName(string(k))) }

// Normalize returns the canonical form of k.
func (k ContainerKey) Normalize() ContainerKey { return ContainerKey(NormalizeName(string(k))) }

func registryKey(key ServiceKey) ServiceKey {
	return ServiceKey(strings.ToLower(strings.TrimSpace(string(key))))
}
