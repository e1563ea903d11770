package stats

import "strings"

// HealthReport scores a repository's community files.
type HealthReport struct {
	Score   int      `json:"score"`
	Grade   string   `json:"grade"`
	Missing []string `json:"missing"`
}

var healthChecks = []struct {
	file  string
	label string
}{
	{"README.md", "README"},
	{"LICENSE", "License"},
	{"CONTRIBUTING.md", "Contributing Guide"},
	{".gitignore", ".gitignore"},
}

// Health checks for the presence of the standard community files, ignoring case.
func Health(files []string) HealthReport {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[strings.ToLower(f)] = struct{}{}
	}

	report := HealthReport{Missing: []string{}}
	for _, check := range healthChecks {
		if _, ok := present[strings.ToLower(check.file)]; ok {
			report.Score++
		} else {
			report.Missing = append(report.Missing, check.label)
		}
	}

	switch report.Score {
	case 4:
		report.Grade = "A"
	case 3:
		report.Grade = "B"
	case 2:
		report.Grade = "C"
	default:
		report.Grade = "D"
	}
	return report
}

var stackMarkers = []struct {
	files []string
	tag   string
}{
	{[]string{"package.json"}, "Node.js"},
	{[]string{"requirements.txt", "pyproject.toml"}, "Python"},
	{[]string{"Dockerfile"}, "Docker"},
	{[]string{"docker-compose.yml"}, "Docker Compose"},
	{[]string{"pom.xml"}, "Java (Maven)"},
	{[]string{"go.mod"}, "Go"},
	{[]string{"Cargo.toml"}, "Rust"},
	{[]string{"Gemfile"}, "Ruby"},
}

// TechStack returns the ecosystem tags whose marker files appear in files.
func TechStack(files []string) []string {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}

	tags := []string{}
	for _, m := range stackMarkers {
		for _, f := range m.files {
			if _, ok := present[f]; ok {
				tags = append(tags, m.tag)
				break
			}
		}
	}
	return tags
}
