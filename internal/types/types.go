package types

// JobRolesOutput is the result of listing job roles
type JobRolesOutput struct {
	JobRoles []string `json:"jobRoles"`
	Fallback bool     `json:"fallback"`
}

// ResumeArtifact is a generated or edited resume
type ResumeArtifact struct {
	ResumeURL        string `json:"resumeUrl"`
	PreviewURL       string `json:"previewUrl"`
	FileType         string `json:"fileType"`
	DownloadFilename string `json:"downloadFilename"`
}

// GenerateOutput is the result of generating a resume
type GenerateOutput struct {
	ResumeArtifact
	SourceFile string   `json:"sourceFile"`
	JobRoles   []string `json:"jobRoles"`
}

// EditOutput is the result of one edit instruction
type EditOutput struct {
	ResumeArtifact
	PreviousURL string `json:"previousUrl"`
	Instruction string `json:"instruction"`
}
