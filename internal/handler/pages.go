package handler

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/microcosm-cc/bluemonday"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// successPageTemplate は認可完了後にポップアップへ返すHTMLページ。
// window.openerへのpostMessageを試み、2秒後に自動で閉じる。
// openerが生きていればpostMessageが本線で、中継ストアは
// openerを失った場合のフォールバック経路となる。
var successPageTemplate = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>ClickUp Authorization Complete</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      display: flex;
      align-items: center;
      justify-content: center;
      height: 100vh;
      margin: 0;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      color: white;
    }
    .container {
      text-align: center;
      padding: 2rem;
      background: rgba(255, 255, 255, 0.1);
      border-radius: 12px;
      backdrop-filter: blur(10px);
    }
    .checkmark {
      font-size: 64px;
      margin-bottom: 1rem;
    }
    h1 { margin: 0 0 1rem 0; }
    p { opacity: 0.9; }
  </style>
</head>
<body>
  <div class="container">
    <div class="checkmark">&#10003;</div>
    <h1>Authorization Successful!</h1>
    <p>You can close this window and return to Figma.</p>
  </div>
  <script>
    if (window.opener) {
      try {
        window.opener.postMessage({
          type: 'clickup-auth-success',
          data: {{.Payload}}
        }, '*');
      } catch (e) {
        console.log('Could not post message to opener:', e);
      }
    }
    setTimeout(() => window.close(), 2000);
  </script>
</body>
</html>
`))

// errorPageTemplate は認可失敗時にポップアップへ返すHTMLページ。
var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Authorization Failed</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      display: flex;
      align-items: center;
      justify-content: center;
      height: 100vh;
      margin: 0;
      background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%);
      color: white;
    }
    .container {
      text-align: center;
      padding: 2rem;
      background: rgba(255, 255, 255, 0.1);
      border-radius: 12px;
      backdrop-filter: blur(10px);
    }
    .error-icon {
      font-size: 64px;
      margin-bottom: 1rem;
    }
    h1 { margin: 0 0 1rem 0; }
    p { opacity: 0.9; }
  </style>
</head>
<body>
  <div class="container">
    <div class="error-icon">&#10007;</div>
    <h1>Authorization Failed</h1>
    <p>{{.Detail}}</p>
    <p>Please try again or contact support.</p>
  </div>
</body>
</html>
`))

// detailSanitizer は提供側のエラーテキストからHTMLを除去する。
var detailSanitizer = bluemonday.StrictPolicy()

// callbackPayload は成功ページに埋め込む受け渡しデータ。
type callbackPayload struct {
	AccessToken string             `json:"access_token"`
	User        *model.UserSummary `json:"user"`
	State       string             `json:"state"`
}

// renderSuccessPage は認可成功ページを書き込む。
func renderSuccessPage(w http.ResponseWriter, payload callbackPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	return successPageTemplate.Execute(w, struct {
		Payload template.JS
	}{
		Payload: template.JS(data),
	})
}

// renderErrorPage は認可失敗ページを書き込む。
// detailは提供側由来のテキストが紛れ込むためサニタイズする。
func renderErrorPage(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	errorPageTemplate.Execute(w, struct {
		Detail string
	}{
		Detail: detailSanitizer.Sanitize(detail),
	})
}
