package portal

import "html/template"

var pages = template.Must(template.New("layout").Parse(`
{{define "header"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.}} · joblinker</title></head><body>{{end}}
{{define "footer"}}</body></html>
{{end}}

{{define "login"}}{{template "header" "Sign in"}}
<h1>Sign in</h1>
{{with .Error}}<p role="alert">{{.}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="next" value="{{.Next}}">
  <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
{{template "footer"}}{{end}}

{{define "me"}}{{template "header" "Profile"}}
<h1>{{if .Name}}{{.Name}}{{else}}Your profile{{end}}</h1>
<dl>
  <dt>Email</dt><dd>{{.Email}}</dd>
  <dt>Role</dt><dd>{{.Role}}</dd>
</dl>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{template "footer"}}{{end}}
`))

type loginPage struct {
	Next  string
	Email string
	Error string
}
