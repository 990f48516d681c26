package testsite

import "html/template"

type loginView struct {
	Username string
	Error    string
}

type inventoryView struct {
	User     string
	Products []string
}

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Swag Labs</title></head>
<body>
<div class="login_logo">Swag Labs</div>
<form method="POST" action="/login">
  <input type="text" class="input_error form_input" placeholder="Username" id="user-name" name="user-name" value="{{.Username}}">
  <input type="password" class="input_error form_input" placeholder="Password" id="password" name="password">
  {{if .Error}}<h3 data-test="error">{{.Error}}</h3>{{end}}
  <input type="submit" class="submit-button btn_action" data-test="login-button" id="login-button" name="login-button" value="Login">
</form>
</body>
</html>
`))

var inventoryTmpl = template.Must(template.New("inventory").Parse(`<!DOCTYPE html>
<html>
<head><title>Swag Labs</title></head>
<body>
<div class="header_secondary_container">
  <span class="title" data-test="title">Products</span>
</div>
<div class="inventory_list" data-user="{{.User}}">
{{range .Products}}  <div class="inventory_item_name">{{.}}</div>
{{end}}</div>
<a id="logout_sidebar_link" href="/logout">Logout</a>
</body>
</html>
`))
