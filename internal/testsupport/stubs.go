package testsupport

// ffmpegStub copies the first -i input to the output path (the last argument)
// and appends its argument list, one per line, to "<binary>.args".
const ffmpegStub = `#!/bin/sh
input=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ] && [ -z "$input" ]; then
    input="$arg"
  fi
  prev="$arg"
done
out="$prev"
printf '%s\n' "$*" >> "$0.args"
if [ -n "$input" ] && [ -f "$input" ]; then
  cp "$input" "$out" || exit 1
else
  echo "$input: No such file or directory" >&2
  exit 1
fi
exit 0
`

// ffprobeStub reads "duration=", "audio=" and optional "size=" lines from the
// probed file and answers with ffprobe-shaped JSON. Files without a duration line produce a
// format section without duration.
const ffprobeStub = `#!/bin/sh
for last in "$@"; do :; done
if [ ! -r "$last" ]; then
  echo "$last: No such file or directory" >&2
  exit 1
fi
duration=$(sed -n 's/^duration=//p' "$last" | head -n 1)
audio=$(sed -n 's/^audio=//p' "$last" | head -n 1)
size=$(sed -n 's/^size=//p' "$last" | head -n 1)
if [ -z "$size" ]; then
  size=$(wc -c < "$last" | tr -d ' ')
fi
streams='{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080}'
if [ "$audio" = "1" ]; then
  streams="$streams"',{"index":1,"codec_type":"audio","codec_name":"aac","channels":2}'
fi
if [ -n "$duration" ]; then
  printf '{"streams":[%s],"format":{"filename":"%s","duration":"%s","size":"%s"}}\n' "$streams" "$last" "$duration" "$size"
else
  printf '{"streams":[%s],"format":{"filename":"%s","size":"%s"}}\n' "$streams" "$last" "$size"
fi
`
