package contract

// ProjectID: 逻辑项目标识（项目目录路径，规范化为正斜杠，跨平台一致）。
type ProjectID string

// DraftFileName 为项目目录内草稿文档的固定文件名。
const DraftFileName = "draft_content.json"
