package viewer

import (
	"html/template"
	"io"
	"strconv"

	"github.com/brensch/twenty48/game"
)

type cellView struct {
	Value int
	Label string
	Class string
}

type boardView struct {
	Score int
	Turn  int
	Rows  [][]cellView
}

func newBoardView(snap game.Snapshot) boardView {
	v := boardView{Score: snap.Score, Turn: snap.Turn, Rows: make([][]cellView, snap.Rows)}
	for r := range v.Rows {
		v.Rows[r] = make([]cellView, snap.Cols)
		for c := range v.Rows[r] {
			v.Rows[r][c] = cellView{Class: "tile empty"}
		}
	}
	for _, t := range snap.Tiles {
		if t.Row < 0 || t.Row >= snap.Rows || t.Col < 0 || t.Col >= snap.Cols {
			continue
		}
		v.Rows[t.Row][t.Col] = cellView{
			Value: t.Value,
			Label: strconv.Itoa(t.Value),
			Class: tileClass(t.Value),
		}
	}
	return v
}

func tileClass(v int) string {
	if v > 2048 {
		return "tile tile-super"
	}
	return "tile tile-" + strconv.Itoa(v)
}

var boardTemplate = template.Must(template.New("board").Parse(`{{define "board"}}<table id="board" class="board" data-score="{{.Score}}" data-turn="{{.Turn}}">
{{- range $r, $row := .Rows}}
<tr>{{range $c, $cell := $row}}<td class="{{$cell.Class}}" data-row="{{$r}}" data-col="{{$c}}"{{if $cell.Value}} data-value="{{$cell.Value}}"{{end}}>{{$cell.Label}}</td>{{end}}</tr>
{{- end}}
</table>
<p class="status">Score <span id="score">{{.Score}}</span> Turn <span id="turn">{{.Turn}}</span></p>{{end}}`))

var pageTemplate = template.Must(template.Must(boardTemplate.Clone()).New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>2048</title>
<style>
.board { border-collapse: collapse; font-family: sans-serif; }
.tile { width: 64px; height: 64px; text-align: center; font-weight: bold; border: 4px solid #bbada0; background: #cdc1b4; }
.tile-2 { background: #eee4da; } .tile-4 { background: #ede0c8; } .tile-8 { background: #f2b179; }
.tile-16 { background: #f59563; } .tile-32 { background: #f67c5f; } .tile-64 { background: #f65e3b; }
.tile-128, .tile-256, .tile-512 { background: #edcf72; } .tile-1024, .tile-2048 { background: #edc22e; }
.tile-super { background: #3c3a32; color: #f9f6f2; }
</style>
</head>
<body>
<div id="live">{{if .Live}}{{template "board" .Board}}{{else}}<p class="waiting">No game yet.</p>{{end}}</div>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (ev) {
    var s = JSON.parse(ev.data);
    var grid = [];
    for (var r = 0; r < s.rows; r++) { grid.push(new Array(s.cols).fill(0)); }
    (s.tiles || []).forEach(function (t) { grid[t.row][t.col] = t.value; });
    var html = '<table id="board" class="board">';
    grid.forEach(function (row) {
      html += "<tr>";
      row.forEach(function (v) {
        var cls = v === 0 ? "tile empty" : (v > 2048 ? "tile tile-super" : "tile tile-" + v);
        html += '<td class="' + cls + '">' + (v || "") + "</td>";
      });
      html += "</tr>";
    });
    html += '</table><p class="status">Score <span id="score">' + s.score + '</span> Turn <span id="turn">' + s.turn + "</span></p>";
    document.getElementById("live").innerHTML = html;
  };
})();
</script>
</body>
</html>
`))

// RenderBoardHTML writes snap as an HTML table, one td per cell.
func RenderBoardHTML(w io.Writer, snap game.Snapshot) error {
	return boardTemplate.ExecuteTemplate(w, "board", newBoardView(snap))
}

// RenderPage writes the live viewer page. snap may be nil before the first
// game starts.
func RenderPage(w io.Writer, snap *game.Snapshot) error {
	data := struct {
		Live  bool
		Board boardView
	}{}
	if snap != nil {
		data.Live = true
		data.Board = newBoardView(*snap)
	}
	return pageTemplate.ExecuteTemplate(w, "page", data)
}
