package notify

import "strings"

// Render substitutes {{token}} placeholders in stored email subjects and
// bodies. Unknown tokens are left untouched so a typo in an administrator's
// template stays visible instead of silently vanishing.
//
// Tokens in use: name, evaluation_name, eval_schedule_end_date, eval_period,
// link, passcode.
func Render(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
