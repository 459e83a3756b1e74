package config

// DefaultConfigYAML 内置默认配置，外部 config.yaml 可覆盖其中任意字段
var DefaultConfigYAML = []byte(`server:
  port: ":8080"
  mode: "debug"
  base_url: "http://localhost:8080"

database:
  host: "127.0.0.1"
  port: "3306"
  username: "root"
  password: "root"
  dbname: "costcenter"
  charset: "utf8mb4"

jwt:
  secret: "costcenter-dev-secret-change-me"
  expire_hours: 24

email:
  enabled: false
  host: "smtp.example.com"
  port: 465
  username: ""
  password: ""
  from: ""

transfer:
  max_version_retries: 3
`)
