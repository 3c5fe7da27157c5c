package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// RequestType is the closed set of request categories DecomposeRequest knows.
type RequestType string

const (
	RequestCharacter      RequestType = "character"
	RequestScene          RequestType = "scene"
	RequestShot           RequestType = "shot"
	RequestImage          RequestType = "image"
	RequestVideo          RequestType = "video"
	RequestScript         RequestType = "script"
	RequestFullProduction RequestType = "full_production"
	RequestUnknown        RequestType = "unknown"
)

// requestRule maps keywords to a request type and the task that serves it.
// Rules are checked in order; the first match wins.
type requestRule struct {
	kind     RequestType
	keywords []string
	agent    string
	action   string
}

// requestRules holds both English and Chinese keywords. Broader requests come
// first so "make a film with a dragon character" is a production, not a
// character request.
var requestRules = []requestRule{
	{
		kind: RequestFullProduction,
		keywords: []string{
			"full production", "whole film", "whole movie", "complete film", "complete movie",
			"make a film", "make a movie", "produce a film", "short film",
			"完整", "制作电影", "拍一部", "短片", "整部",
		},
	},
	{
		kind:     RequestVideo,
		keywords: []string{"video", "animate", "animation", "clip", "视频", "动画"},
		agent:    "video-producer",
		action:   "generate_video",
	},
	{
		kind:     RequestImage,
		keywords: []string{"image", "picture", "keyframe", "illustration", "render", "图片", "图像", "画面", "关键帧"},
		agent:    "image-artist",
		action:   "generate_image",
	},
	{
		kind:     RequestShot,
		keywords: []string{"shot", "storyboard", "camera", "framing", "镜头", "分镜"},
		agent:    "shot-designer",
		action:   "break_down_shots",
	},
	{
		kind:     RequestScene,
		keywords: []string{"scene", "location", "setting", "场景", "地点"},
		agent:    "scene-designer",
		action:   "design_scenes",
	},
	{
		kind:     RequestCharacter,
		keywords: []string{"character", "protagonist", "villain", "角色", "人物", "主角"},
		agent:    "character-designer",
		action:   "design_characters",
	},
	{
		kind:     RequestScript,
		keywords: []string{"script", "screenplay", "story", "dialogue", "plot", "剧本", "故事", "台词", "剧情"},
		agent:    "screenwriter",
		action:   "write_script",
	},
}

// ClassifyRequest picks a request type by keyword matching.
func ClassifyRequest(message string) RequestType {
	rule, ok := matchRule(message)
	if !ok {
		return RequestUnknown
	}
	return rule.kind
}

func matchRule(message string) (requestRule, bool) {
	lower := strings.ToLower(message)
	for _, rule := range requestRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule, true
			}
		}
	}
	return requestRule{}, false
}

// DecomposeRequest turns a free-text request into task specs. Single-step
// requests yield one spec for the matching agent; production requests expand
// to the film plan; anything else goes to the planner agent. reqCtx is
// serialised into every spec's params.
func (o *Orchestrator) DecomposeRequest(message string, reqCtx map[string]any) ([]scheduler.TaskSpec, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("decompose request: empty message")
	}

	rule, ok := matchRule(message)
	if !ok {
		rule = requestRule{kind: RequestUnknown, agent: o.opts.PlannerAgent, action: "decompose"}
	}

	if rule.kind == RequestFullProduction {
		plan, err := o.CreatePlan(message, PlanOptions{Template: TemplateFilm, Context: reqCtx})
		if err != nil {
			return nil, fmt.Errorf("decompose request: %w", err)
		}
		specs := make([]scheduler.TaskSpec, 0, len(plan.Tasks()))
		for _, task := range plan.Tasks() {
			specs = append(specs, specFromTask(task))
		}
		return specs, nil
	}

	params, err := encodeParams(reqCtx, map[string]any{
		"message":      message,
		"request_type": string(rule.kind),
	})
	if err != nil {
		return nil, fmt.Errorf("decompose request: %w", err)
	}
	return []scheduler.TaskSpec{{
		Name:        shorten(message, 60),
		Description: message,
		AgentID:     rule.agent,
		Action:      rule.action,
		Params:      params,
		Priority:    o.agentPriority(rule.agent),
	}}, nil
}

// SubmitRequest decomposes message and enqueues the resulting tasks.
func (o *Orchestrator) SubmitRequest(message string, reqCtx map[string]any) ([]*scheduler.Task, error) {
	specs, err := o.DecomposeRequest(message, reqCtx)
	if err != nil {
		return nil, err
	}
	tasks := make([]*scheduler.Task, 0, len(specs))
	for _, spec := range specs {
		tasks = append(tasks, scheduler.NewTask(spec))
	}
	added, err := o.queue.AddAll(tasks)
	if err != nil {
		return added, fmt.Errorf("submit request: %w", err)
	}
	return added, nil
}

func specFromTask(task *scheduler.Task) scheduler.TaskSpec {
	return scheduler.TaskSpec{
		ID:           task.ID,
		Name:         task.Name,
		Description:  task.Description,
		AgentID:      task.AgentID,
		Action:       task.Action,
		Params:       task.Params,
		Priority:     task.Priority,
		Dependencies: task.Dependencies,
	}
}
