package persona

import (
	"encoding/json"
	"fmt"
	"strings"

	"nexusmail/agent/internal/domain"
)

// scriptPayload 是注入脚本里的身份对象，键名刻意压短以减小脚本体积。
type scriptPayload struct {
	FullName  string `json:"fn"`
	Email     string `json:"em"`
	Password  string `json:"pw"`
	Address   string `json:"ad"`
	BirthDate string `json:"bd"`
	Username  string `json:"usr"`
	Phone     string `json:"ph"`
}

// AutofillScript 生成一段自包含的浏览器控制台脚本，把虚拟身份注入目标页面的表单。
//
// 脚本通过元素原型上的原生 value setter 写值并同步 React 的 _valueTracker，
// 之后按 focus、keydown、keypress、input、change、keyup、blur 的顺序派发事件。
// 这个事件顺序是和前端框架的兼容契约，监听输入状态的框架依赖它感知变化，
// 不能调整。分类级联与 Classify 保持一致。
//
// email 为空时用全名派生一个公共邮箱地址兜底。
func (g *Generator) AutofillScript(p domain.Persona, email string) (string, error) {
	if email == "" {
		g.mu.Lock()
		email = fmt.Sprintf("%s%d@gmail.com",
			strings.ToLower(strings.ReplaceAll(p.FullName, " ", "")),
			g.random.Intn(100))
		g.mu.Unlock()
	}

	payload, err := json.Marshal(scriptPayload{
		FullName:  p.FullName,
		Email:     email,
		Password:  p.Password,
		Address:   p.Address,
		BirthDate: p.BirthDate,
		Username:  g.Username(p),
		Phone:     g.Phone(),
	})
	if err != nil {
		return "", fmt.Errorf("编码身份对象失败: %w", err)
	}

	return strings.Replace(autofillTemplate, "__PERSONA__", string(payload), 1), nil
}

// 仅依赖 DOM 标准接口，可直接粘贴进任意页面的控制台执行。
const autofillTemplate = `(function(){
  const p = __PERSONA__;

  function triggerEvents(el) {
    el.dispatchEvent(new Event('focus', { bubbles: true }));
    el.dispatchEvent(new KeyboardEvent('keydown', { bubbles: true, key: 'a' }));
    el.dispatchEvent(new KeyboardEvent('keypress', { bubbles: true, key: 'a' }));
    el.dispatchEvent(new Event('input', { bubbles: true }));
    el.dispatchEvent(new Event('change', { bubbles: true }));
    el.dispatchEvent(new KeyboardEvent('keyup', { bubbles: true, key: 'a' }));
    el.dispatchEvent(new Event('blur', { bubbles: true }));
  }

  function setNativeValue(element, value) {
    const valueSetter = Object.getOwnPropertyDescriptor(element, 'value').set;
    const prototype = Object.getPrototypeOf(element);
    const prototypeValueSetter = Object.getOwnPropertyDescriptor(prototype, 'value').set;

    if (valueSetter && valueSetter !== prototypeValueSetter) {
      prototypeValueSetter.call(element, value);
    } else {
      valueSetter.call(element, value);
    }

    element.value = value;
    const tracker = element._valueTracker;
    if (tracker) {
      tracker.setValue(value);
    }
    triggerEvents(element);
  }

  let count = 0;
  const inputs = Array.from(document.querySelectorAll('input, select, textarea'));

  inputs.forEach(i => {
    const n = (i.name || i.id || i.getAttribute('aria-label') || i.placeholder || '').toLowerCase();
    const t = (i.type || '').toLowerCase();
    let val = null;

    if (t === 'hidden' || i.disabled || i.readOnly || i.style.display === 'none') return;

    if (t === 'email' || n.includes('mail') || n.includes('eposta') || n.includes('e-posta')) val = p.em;
    else if (n.includes('mobile') || n.includes('phone') || n.includes('number') || n.includes('tel') || n.includes('cep') || n.includes('telefon')) val = p.ph;
    else if (n.includes('password') || n.includes('pass') || n.includes('sifre') || n.includes('parola') || t === 'password') val = p.pw;
    else if (n.includes('username') || n.includes('login') || n.includes('kullanici') || n.includes('nick') || (n.includes('user') && !n.includes('name'))) val = p.usr;
    else if (n.includes('fullname') || n.includes('adsoyad') || (n.includes('name') && !n.includes('first') && !n.includes('last'))) val = p.fn;
    else if (n.includes('first') || n.includes('isim')) val = p.fn.split(' ')[0];
    else if (n.includes('last') || n.includes('soyad')) val = p.fn.split(' ')[1];
    else if (n.includes('address') || n.includes('street') || n.includes('location') || n.includes('adres')) val = p.ad;
    else if (t === 'date' || n.includes('birth') || n.includes('dob') || n.includes('dogum')) val = p.bd;

    if (val) {
      try {
        i.focus();
        setNativeValue(i, val);
        i.style.boxShadow = '0 0 0 2px #10b981';
        i.style.transition = 'box-shadow 0.3s';
        count++;
      } catch (e) {}
    }
  });

  const toast = document.createElement('div');
  toast.textContent = 'NexusMail: ' + count + ' fields filled';
  toast.style.cssText = 'position:fixed; top:20px; right:20px; background:#4f46e5; color:white; padding:12px 24px; border-radius:8px; font-family:sans-serif; font-weight:bold; z-index:2147483647; pointer-events:none; box-shadow: 0 4px 6px -1px rgba(0, 0, 0, 0.1);';
  document.documentElement.appendChild(toast);
  setTimeout(() => toast.remove(), 4000);

  return 'filled ' + count + ' fields as ' + p.em;
})();`
