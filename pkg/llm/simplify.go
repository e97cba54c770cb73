package llm

import "strings"

// simplifiedPromptLimit caps a simplified message.
const simplifiedPromptLimit = 500

// Keyword sets used to boil a message down to its essentials when the full
// prompt keeps failing. Chosen per context type.
var (
	commandKeywords = []string{
		"创建", "删除", "移动", "复制", "查看", "打开", "列出", "查找", "压缩", "解压",
		"create", "delete", "move", "copy", "list", "open", "find", "show",
		"文件", "目录", "文件夹", "file", "directory", "folder",
	}
	questionWords = []string{
		"什么", "为什么", "怎么", "如何", "哪", "是否", "能否",
		"what", "why", "how", "which", "when", "where", "who", "can", "should",
	}
	taskWords = []string{
		"然后", "接着", "先", "再", "最后", "并且",
		"then", "first", "next", "after", "finally", "and",
		"创建", "安装", "配置", "启动", "运行", "构建",
		"create", "install", "setup", "start", "run", "build",
	}
)

// SimplifyMessages reduces each message to keyword-extracted essentials for
// the simplified-prompt fallback step.
func SimplifyMessages(messages []Message, contextType ContextType) []Message {
	keywords := keywordsFor(contextType)
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, Message{
			Role:    msg.Role,
			Content: simplifyContent(msg.Content, keywords),
		})
	}
	return out
}

func keywordsFor(contextType ContextType) []string {
	switch contextType {
	case ContextCommandGeneration:
		return commandKeywords
	case ContextQuestion:
		return questionWords
	case ContextMultiStepPlanning:
		return taskWords
	default:
		return questionWords
	}
}

// simplifyContent keeps the sentences containing keywords; if none match,
// the raw content is kept. Either way the result is capped at 500 chars.
func simplifyContent(content string, keywords []string) string {
	sentences := strings.FieldsFunc(content, func(r rune) bool {
		return r == '。' || r == '.' || r == '\n' || r == '！' || r == '!' || r == '？' || r == '?'
	})

	var kept []string
	for _, sentence := range sentences {
		lowered := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				kept = append(kept, strings.TrimSpace(sentence))
				break
			}
		}
	}

	simplified := strings.Join(kept, "。")
	if simplified == "" {
		simplified = content
	}
	return truncateRunes(simplified, simplifiedPromptLimit)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
