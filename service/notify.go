package service

import (
	"fmt"

	"costcenter/config"
	"costcenter/models"

	"gopkg.in/gomail.v2"
)

// 事件类型对应的通知标题
var eventTitles = map[string]string{
	models.EventCostCenterFinalized: "成本中心已封账",
	models.EventCostCenterApproved:  "成本中心审批通过",
	models.EventCostCenterRejected:  "成本中心被驳回",
	models.EventCostCenterCancelled: "成本中心已取消",
	models.EventFundsRequested:      "资金申请已提交",
	models.EventFundsReceived:       "资金已到账",
}

// NotifyService 工作流事件邮件通知
// 通知只是事件的一种投递方式，未启用时工作流照常运行
type NotifyService struct {
	cfg *config.EmailConfig
}

// NewNotifyService 创建通知服务
func NewNotifyService(cfg *config.EmailConfig) *NotifyService {
	return &NotifyService{cfg: cfg}
}

// SendWorkflowNotice 向负责人发送工作流事件通知
func (s *NotifyService) SendWorkflowNotice(toEmail, username string, cc *models.CostCenter, event, note string) error {
	if !s.cfg.Enabled {
		return nil
	}

	title := eventTitles[event]
	if title == "" {
		title = "成本中心状态变更"
	}
	subject := fmt.Sprintf("【成本中心】%s：%s", title, cc.Title)
	body := s.generateNoticeBody(username, cc, title, note)

	return s.sendEmail(toEmail, subject, body)
}

// generateNoticeBody 生成通知邮件内容
func (s *NotifyService) generateNoticeBody(username string, cc *models.CostCenter, title, note string) string {
	noteBlock := ""
	if note != "" {
		noteBlock = fmt.Sprintf(`<div class="note"><p>备注：%s</p></div>`, note)
	}
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #2563eb, #1d4ed8); color: white; padding: 24px; text-align: center; }
        .content { padding: 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 16px; }
        .meta { background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0; }
        .meta p { margin: 4px 0; color: #555; font-size: 14px; }
        .note { background: #fff3cd; border-left: 4px solid #ffc107; padding: 12px; margin: 16px 0; border-radius: 4px; }
        .note p { margin: 0; color: #856404; font-size: 14px; }
        .footer { background: #f8f9fa; padding: 16px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>%s</h2></div>
        <div class="content">
            <p>%s，您好！</p>
            <p>您负责的成本中心「%s」有新的状态变更。</p>
            <div class="meta">
                <p>当前状态：%s</p>
                <p>可用余额：%.2f</p>
                <p>已支出：%.2f</p>
            </div>
            %s
        </div>
        <div class="footer">此邮件由系统自动发送，请勿直接回复。</div>
    </div>
</body>
</html>`, title, username, cc.Title, cc.Status, cc.Balance, cc.SpentTotal, noteBlock)
}

// sendEmail 发送邮件
func (s *NotifyService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}
