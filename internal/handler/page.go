package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

// PageConfig は管理画面の表示に使うスケジュール設定。
type PageConfig struct {
	Timezone string
	RunAt    string
}

// adminPageTemplate は管理画面のHTMLテンプレート。
// 一覧の描画はクライアント側でapi/statusを取得して行う。
var adminPageTemplate = template.Must(template.New("admin").Parse(`<!doctype html>
<html lang="ja"><head><meta charset="utf-8"/>
<title>ライセンス有効期限</title>
<style>
body{font-family:system-ui,"Segoe UI",Arial;margin:24px;color:#111}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #ccc;padding:6px 8px}
th{background:#f3f3f3;text-align:left}
button{padding:6px}
</style>
</head><body>
<h2>ライセンス有効期限</h2>
<p>毎日 {{.RunAt}}（{{.Timezone}}）にチェックを実行します。日付セルをクリックすると編集できます（ISO 8601、例: 2026-01-31T23:59:59+03:00）。</p>
<div id="app">読み込み中…</div>
<script>
function csrfToken(){
  const m=document.cookie.match(/(?:^|; )csrf_token=([^;]*)/);
  return m?decodeURIComponent(m[1]):'';
}
async function rq(p,o){
  o=Object.assign({headers:{'content-type':'application/json','X-CSRF-Token':csrfToken()}},o||{});
  const r=await fetch(p,o);
  return r.json();
}
async function load(){
  const data=await rq('api/status');
  const rows=data.users.map(u=>{
    const k=u.domain+'/'+u.userid,until=data.map[k]||'';
    return '<tr>'+
      '<td>'+u.domain+'</td><td>'+u.userid+'</td><td>'+(u.locked?'🔒':'')+'</td>'+
      '<td contenteditable onblur="saveDate(\''+k+'\',this.innerText)">'+until+'</td>'+
      '<td><button onclick="extend(\''+k+'\',30)">+30日</button> '+
      '<button onclick="extend(\''+k+'\',365)">+1年</button> '+
      '<button onclick="lk(\''+k+'\',true)">ロック</button> '+
      '<button onclick="lk(\''+k+'\',false)">解除</button></td></tr>';
  }).join('');
  document.getElementById('app').innerHTML=
    '<p><button onclick="run()">今すぐチェックを実行</button></p>'+
    '<table><thead><tr><th>ドメイン</th><th>UserID</th><th>ロック</th><th>有効期限</th><th>操作</th></tr></thead><tbody>'+rows+'</tbody></table>';
}
async function saveDate(k,v){await rq('api/set',{method:'POST',body:JSON.stringify({key:k,until:v})});}
async function extend(k,days){await rq('api/extend',{method:'POST',body:JSON.stringify({key:k,days:days})});load();}
async function lk(k,f){await rq('api/lock',{method:'POST',body:JSON.stringify({key:k,flag:f})});load();}
async function run(){await rq('api/run',{method:'POST',body:'{}'});load();}
load();
</script></body></html>
`))

// PageHandler は管理画面を配信するハンドラー。
type PageHandler struct {
	config PageConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(config PageConfig) *PageHandler {
	return &PageHandler{config: config}
}

// AdminPage は管理画面のHTMLを返す。
// GET /
func (h *PageHandler) AdminPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminPageTemplate.Execute(w, h.config); err != nil {
		slog.Error("failed to render admin page", slog.String("error", err.Error()))
	}
}
