package drawing

import (
	"html/template"
	"io"
)

var pageTmpl = template.Must(template.New("draw").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js"></script>
<style>body{margin:0;background:#000000;color:#f0f2f6;font-family:sans-serif}</style>
</head>
<body>
<div id="root"></div>
<script>
const key = {{.Key}};
const endpoint = {{.Endpoint}};
fetch(endpoint).then(r => r.json()).then(state => {
  const trace = {x: state.x, y: state.y, mode: "lines+markers", name: key};
  const layout = {
    dragmode: "drawline",
    newshape: {line: {color: "cyan"}},
    shapes: state.shapes || [],
    width: {{.Width}},
    height: {{.Height}},
    paper_bgcolor: "#000000",
    plot_bgcolor: "#000000",
    font: {color: "#f0f2f6"}
  };
  const config = {
    modeBarButtonsToAdd: ["drawline", "drawrect", "drawcircle", "drawopenpath", "eraseshape"],
    scrollZoom: true
  };
  Plotly.newPlot("root", [trace], layout, config).then(gd => {
    gd.on("plotly_relayout", ev => {
      fetch(endpoint, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(ev)});
    });
  });
});
</script>
</body>
</html>
`))

// Page 是绘图页面模板参数。
type Page struct {
	Title    string
	Key      string
	Endpoint string
	Width    int
	Height   int
}

// Render 输出绘图页面。
func (p Page) Render(w io.Writer) error {
	if p.Width <= 0 {
		p.Width = 800
	}
	if p.Height <= 0 {
		p.Height = 500
	}
	if p.Title == "" {
		p.Title = p.Key
	}
	return pageTmpl.Execute(w, p)
}
