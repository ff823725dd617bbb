package domain

// VersionDateLayout 是版本日期的快照格式（UTC，精确到分钟）。
const VersionDateLayout = "2006-01-02 15:04"

// Version 是一个严格 MAJOR.MINOR.PATCH 的发布版本。
type Version struct {
	Name string `yaml:"name" json:"name"`
	Date string `yaml:"date" json:"date"`
}

// Project 是单个仓库的版本快照。
//
// 除 versions 外的字段是仓库元数据，方便模板渲染徽章/链接。
type Project struct {
	Owner       string    `yaml:"owner" json:"owner"`
	Name        string    `yaml:"name" json:"name"`
	URL         string    `yaml:"url" json:"url"`
	Description *string   `yaml:"description" json:"description"`
	Stars       int       `yaml:"stars" json:"stars"`
	License     *string   `yaml:"license" json:"license"`
	LastRelease *string   `yaml:"last_release" json:"last_release"`
	Versions    []Version `yaml:"versions" json:"versions"`
}

// FullName 返回 owner/name。
func (p Project) FullName() string {
	return p.Owner + "/" + p.Name
}
